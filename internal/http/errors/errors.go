// Package errors escribe los errores de dominio como respuestas HTTP
// ({code, message, detail, details}) con el status de cada código.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// HeaderErrorCode repite el código en un header para clientes que no leen el body.
const HeaderErrorCode = "X-Auth-Error-Code"

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Detail  string         `json:"detail,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteError escribe err. No loguea: usar Respond cuando hay request.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set(HeaderErrorCode, appErr.Code)
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
		Details: appErr.Details,
	})
}

// Respond escribe err y loguea la causa de los 5xx con el logger del request.
func Respond(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)
	if appErr.HTTPStatus >= 500 {
		logger.From(r.Context()).Error("request failed",
			logger.Layer("http"), logger.ErrorCode(appErr.Code), logger.Err(appErr.Err))
	}
	WriteError(w, appErr)
}
