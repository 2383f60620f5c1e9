// actor.go — идентификация вызывающего пользователя.
// Аутентификацию выполняет шлюз перед сервисом и передаёт идентификатор
// пользователя в заголовке X-User-ID. Запросы без корректного заголовка
// отклоняются с 401.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/AECHE7/Fanders-sub003/internal/api/errors"
)

// HeaderUserID — заголовок с идентификатором пользователя.
const HeaderUserID = "X-User-ID"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyActor — идентификатор пользователя в контексте запроса.
const ContextKeyActor contextKey = "slr_actor"

// Actor возвращает middleware, извлекающий идентификатор пользователя.
// Запросы к путям, начинающимся с excludePrefixes, проходят без проверки.
func Actor(excludePrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if raw == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок "+HeaderUserID)
				return
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				apierrors.Unauthorized(w, "Некорректный идентификатор пользователя в "+HeaderUserID)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyActor, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext извлекает идентификатор пользователя из контекста.
// Возвращает false, если идентификатор не найден.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ContextKeyActor).(int64)
	return id, ok
}
