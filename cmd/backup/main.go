package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"napdiary/internal/config"
	"napdiary/internal/database"
	"napdiary/internal/service"
	"napdiary/migrations"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: napdiary_backup_YYYYMMDD_HHMMSS.json)")
	importInput := importCmd.String("input", "", "Input file path (required)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var err error
	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		err = withBackupService(logger, func(ctx context.Context, backups *service.BackupService) error {
			return handleExport(ctx, logger, backups, *exportOutput)
		})

	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Fprintln(os.Stderr, "Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		err = withBackupService(logger, func(ctx context.Context, backups *service.BackupService) error {
			return handleImport(ctx, logger, backups, *importInput)
		})

	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("backup failed", "error", err)
		os.Exit(1)
	}
}

// withBackupService opens the configured database, brings the schema up to date and runs fn
func withBackupService(logger *slog.Logger, fn func(ctx context.Context, backups *service.BackupService) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	db, err := database.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	var files fs.FS = migrations.Files
	if cfg.MigrationsPath != "" {
		files = os.DirFS(cfg.MigrationsPath)
	}
	if err := db.RunMigrations(ctx, files); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return fn(ctx, service.NewBackupService(db, logger))
}

func handleExport(ctx context.Context, logger *slog.Logger, backups *service.BackupService, outputPath string) (err error) {
	if outputPath == "" {
		outputPath = fmt.Sprintf("napdiary_backup_%s.json", time.Now().Format("20060102_150405"))
	}

	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	logger.Info("exporting database", "path", outputPath)
	if err := backups.Export(ctx, file); err != nil {
		return err
	}

	if info, statErr := file.Stat(); statErr == nil {
		logger.Info("export complete", "path", outputPath, "bytes", info.Size())
	}
	return nil
}

func handleImport(ctx context.Context, logger *slog.Logger, backups *service.BackupService, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()

	logger.Info("importing database", "path", inputPath)
	if err := backups.Import(ctx, file); err != nil {
		if errors.Is(err, service.ErrDatabaseNotEmpty) {
			return fmt.Errorf("%w: point DB_PATH or DATABASE_URL at a fresh database", err)
		}
		return err
	}

	logger.Info("import complete")
	return nil
}

func printUsage() {
	fmt.Println("Nap Diary Database Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export database to JSON file")
	fmt.Println("  backup import [options]    Import a JSON backup into an empty database")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: napdiary_backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./napdiary.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
