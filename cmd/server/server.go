package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	_defaultIdleTimeout    = time.Minute
	_defaultReadTimeout    = 15 * time.Second
	_defaultWriteTimeout   = 30 * time.Second
	_defaultShutdownPeriod = 10 * time.Second
)

func (app *application) serveHTTP() error {
	srv := &http.Server{
		Addr:         net.JoinHostPort("", app.config.ServerPort),
		Handler:      app.routes(),
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelWarn),
		IdleTimeout:  _defaultIdleTimeout,
		ReadTimeout:  _defaultReadTimeout,
		WriteTimeout: _defaultWriteTimeout,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	app.backgroundTasks(ctx)

	shutdownErrorChan := make(chan error)

	go func() {
		quitChan := make(chan os.Signal, 1)
		signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
		<-quitChan

		shutdownCtx, cancel := context.WithTimeout(context.Background(), _defaultShutdownPeriod)
		defer cancel()

		shutdownErrorChan <- srv.Shutdown(shutdownCtx)
	}()

	app.serverLogger().Info("starting server", slog.Group("server", "addr", srv.Addr, "env", app.config.Env))

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownErrorChan
	if err != nil {
		return err
	}

	app.serverLogger().Info("stopped server", slog.Group("server", "addr", srv.Addr))

	stop()
	app.wg.Wait()
	return nil
}

func (app *application) serverLogger(args ...any) *slog.Logger {
	args = append(args, "module", "server")
	return app.logger.With(args...)
}
