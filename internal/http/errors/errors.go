// errors стандартизирует ответы об ошибках HTTP-слоя task-manager.
// На вход принимает ошибку сервисного слоя (сентинелы internal/service),
// на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей;
//   - details для ошибок валидации (поле -> сообщение).
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/go-task-manager/internal/pkg/log"
	"github.com/pribylovaa/go-task-manager/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Detail — нарушение ограничения конкретного поля.
type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id,omitempty"`
	Details   []Detail `json:"details,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - программная ошибка вызова: 500/internal, чтобы не послать
//     "200 OK" с телом ошибки;
//   - *service.ValidationError - 400/invalid_argument с details;
//   - известные сентинелы - по таблице в fromService;
//   - прочее - 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, ErrorResponse{
			Error: APIError{Code: "internal", Message: "internal error"},
		}
	}

	var ve *service.ValidationError
	if stderrors.As(err, &ve) {
		details := make([]Detail, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			details = append(details, Detail{Field: f.Field, Message: f.Message})
		}

		return http.StatusBadRequest, ErrorResponse{
			Error: APIError{Code: "invalid_argument", Message: "invalid argument", Details: details},
		}
	}

	status, code, msg := fromService(err)
	return status, ErrorResponse{
		Error: APIError{Code: code, Message: msg},
	}
}

// WriteError — хелпер для HTTP-хендлеров и мидлваров.
// Пишет статус/тело, добавляет request_id; 5xx логируются с исходной ошибкой.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	if status >= http.StatusInternalServerError && err != nil {
		log.From(r.Context()).Error("request_failed",
			slog.Int("status", status),
			slog.String("err", err.Error()),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// fromService — маппинг сентинелов сервиса -> HTTP/FE-код/сообщение:
//   - ErrInvalidArgument -> 400
//   - ErrInvalidCredentials, ErrInvalidToken -> 401 (без уточнения причины)
//   - ErrForbidden -> 403
//   - ErrNotFound -> 404
//   - ErrEmailTaken -> 409
//   - context.Canceled -> 499, context.DeadlineExceeded -> 504
//   - ErrUnavailable -> 503
//   - прочее (включая ErrConfiguration) -> 500/internal
func fromService(err error) (int, string, string) {
	switch {
	case stderrors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case stderrors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthenticated", "invalid credentials"
	case stderrors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthenticated", "unauthorized"
	case stderrors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "permission_denied", "permission denied"
	case stderrors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case stderrors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "email already taken"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case stderrors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
