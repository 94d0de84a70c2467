package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"napdiary/internal/ctxstore"
)

func respondWithError(w http.ResponseWriter, r *http.Request, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		loggerFrom(r.Context()).Error(logMsg, "error", err, "status", status)
	}

	http.Error(w, userMsg, status)
}

// loggerFrom returns the request logger installed by Logging, or the default logger
func loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctxstore.From[*slog.Logger](ctx, loggerKey); ok {
		return logger
	}
	return slog.Default()
}
