package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// RecoveryMiddleware создает middleware для восстановления после паники.
// Логирует стек вызовов и возвращает 500 без деталей ошибки.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := wrapResponseWriter(w)

			defer func() {
				err := recover()
				if err == nil {
					return
				}
				// http.ErrAbortHandler используется для обрыва ответа, не логируем
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.ErrorContext(r.Context(), "panic recovered",
					slog.Any("error", err),
					slog.String("request_id", RequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)

				// после hijack или начала ответа статус уже не изменить
				if wrapped.hijacked || wrapped.written > 0 {
					return
				}
				writeError(wrapped, "internal server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
