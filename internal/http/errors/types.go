package errors

import (
	"fmt"
	"net/http"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
)

// AppError es la forma HTTP de un error: el código conocido, su status y la causa (que
// solo va a los logs).
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Detail     string         `json:"detail,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail devuelve una COPIA con detail.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause devuelve una COPIA con la causa.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// Errores propios de la capa HTTP (no vienen del dominio).
var (
	ErrMethodNotAllowed = &AppError{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed.", HTTPStatus: http.StatusMethodNotAllowed}
	ErrNotFound         = &AppError{Code: "NOT_FOUND", Message: "Route not found.", HTTPStatus: http.StatusNotFound}
	ErrUnavailable      = &AppError{Code: "SERVICE_UNAVAILABLE", Message: "Service unavailable.", HTTPStatus: http.StatusServiceUnavailable}
)

// FromError convierte cualquier error en AppError. Los errores de dominio conservan su
// código; cualquier otro es un 500 con la causa guardada.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	ae, ok := autherr.As(err)
	if !ok {
		ae = autherr.ErrInternal.WithCause(err)
	}
	out := &AppError{
		Code:       string(ae.Code),
		Message:    ae.Message,
		Details:    ae.Details,
		HTTPStatus: Status(ae.Code),
		Err:        ae.Err,
	}
	if out.HTTPStatus >= 500 {
		// detalles de un 500 nunca salen del servidor
		out.Details = nil
		if out.Err == nil {
			out.Err = err
		}
	}
	return out
}

// Status es el mapeo exhaustivo código -> HTTP status.
func Status(code autherr.Code) int {
	switch code {
	case autherr.CodeSchemaError,
		autherr.CodeInvalidInput,
		autherr.CodeVerificationCodeExpired,
		autherr.CodeNotSupported,
		autherr.CodeMultiFactorAuthenticationRequired,
		autherr.CodeInvalidTotpCode,
		autherr.CodeTotpNotEnrolled,
		autherr.CodeSignUpNotEnabled,
		autherr.CodeEmailPasswordMismatch,
		autherr.CodePasswordAuthenticationNotEnabled,
		autherr.CodePasswordRequirementsNotMet,
		autherr.CodeMagicLinkNotEnabled,
		autherr.CodeRedirectURLNotWhitelisted,
		autherr.CodePasskeyAuthenticationNotEnabled,
		autherr.CodePasskeyAuthenticationFailed,
		autherr.CodePasskeyRegistrationFailed,
		autherr.CodeInvalidOAuthClientIDOrSecret,
		autherr.CodeOAuthProviderNotFoundOrNotEnabled,
		autherr.CodeOAuthExtraScopeNotAvailableWithSharedKeys,
		autherr.CodeOAuthCookieNotFound,
		autherr.CodeInvalidOAuthState,
		autherr.CodeOuterOAuthTimeout,
		autherr.CodeOAuthProviderAccessDenied,
		autherr.CodeOAuthProviderExchangeFailed,
		autherr.CodeOAuthConnectionNotConnectedToUser,
		autherr.CodeOAuthConnectionDoesNotHaveRequiredScope,
		autherr.CodeInvalidAuthorizationCode,
		autherr.CodeInvalidGrant,
		autherr.CodeUnsupportedGrantType,
		autherr.CodeInvalidScope:
		return http.StatusBadRequest

	case autherr.CodeRefreshTokenNotFoundOrExpired,
		autherr.CodeAccessTokenExpired,
		autherr.CodeUnparsableAccessToken,
		autherr.CodeInvalidAccessToken,
		autherr.CodeAccessTokenProjectMismatch,
		autherr.CodeUserAuthenticationRequired:
		return http.StatusUnauthorized

	case autherr.CodeVerificationCodeNotFound,
		autherr.CodeUserNotFound,
		autherr.CodeTeamNotFound,
		autherr.CodeProjectNotFound:
		return http.StatusNotFound

	case autherr.CodeVerificationCodeAlreadyUsed,
		autherr.CodeUserEmailAlreadyExists,
		autherr.CodeTeamMembershipAlreadyExists,
		autherr.CodeOAuthConnectionAlreadyConnectedToAnotherUser,
		autherr.CodeUserAlreadyConnectedToAnotherOAuthConnection:
		return http.StatusConflict

	case autherr.CodeRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
