package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/freekieb7/go-duedate/internal/errors"
)

type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Redirect answers with status and a Location header. Use 303 after a POST.
func Redirect(w http.ResponseWriter, status int, url string) {
	w.Header().Set("Location", url)
	w.WriteHeader(status)
}

func JSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// ErrorResponse handles structured error responses
func ErrorResponse(w http.ResponseWriter, err error, logger *slog.Logger) {
	var appErr *apperrors.AppError

	if apperrors.IsType(err, apperrors.CodeInternalError) || !errors.As(err, &appErr) {
		// Internal details stay in the log.
		if logger != nil {
			logger.Error("Internal server error", slog.String("error", err.Error()))
		}

		appErr = apperrors.InternalError("An internal error occurred", err)
	} else if logger != nil {
		logger.Warn("Application error occurred",
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("cause", appErr.Error()))
	}

	JSONResponse(w, appErr.HTTPCode, APIResponse{
		Code:    appErr.HTTPCode,
		Status:  "error",
		Message: appErr.Message,
		Data: map[string]string{
			"error_code": appErr.Code,
		},
	})
}

// ProxyErrorBody is what the Moodle proxy answers when the upstream cannot be reached.
type ProxyErrorBody struct {
	Error string `json:"error"`
}

func ProxyError(w http.ResponseWriter, message string) {
	JSONResponse(w, http.StatusBadGateway, ProxyErrorBody{Error: message})
}
