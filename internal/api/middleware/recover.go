// recover.go — перехват паники обработчика.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/bigkaa/goartstore/records-ui/internal/api/errors"
)

// Recover логирует панику обработчика и отвечает 500.
// http.ErrAbortHandler пробрасывается дальше: это штатный обрыв ответа.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // сравнение значения паники
					panic(rec)
				}
				logger.Error("Паника в обработчике",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.InternalError(w, "внутренняя ошибка сервера")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
