package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/go-task-manager/internal/http/errors"
	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/service"
)

// Authenticator проверяет access-токен и возвращает его владельца.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error)
}

// AuthBearer требует заголовок "Authorization: Bearer <token>".
// Отсутствующий/битый заголовок и любой отказ проверки дают 401 без уточнения причины;
// сбой хранилища — 500. При успехе пользователь кладётся в контекст (см. UserFrom).
func AuthBearer(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, r, service.ErrInvalidToken)
				return
			}

			user, err := a.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrInvalidToken) {
					unauthorized(w, r, err)
					return
				}

				apierrors.WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// UserFrom возвращает аутентифицированного пользователя запроса.
func UserFrom(ctx context.Context) (*models.PublicUser, bool) {
	u, ok := ctx.Value(ctxUser).(*models.PublicUser)
	return u, ok && u != nil
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, u *models.PublicUser) context.Context {
	return context.WithValue(ctx, ctxUser, u)
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	apierrors.WriteError(w, r, err)
}
