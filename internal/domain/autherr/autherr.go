// Package autherr define el conjunto cerrado de errores conocidos del core de autenticación.
//
// Cada error lleva un Code estable (lo ve el cliente), un mensaje y un payload opcional.
// La capa HTTP mapea cada Code a un status de forma exhaustiva (ver internal/http/errors).
package autherr

import (
	"errors"
	"fmt"
)

// Code identifica un error conocido. El conjunto es cerrado: agregar un valor obliga a
// actualizar el mapeo HTTP.
type Code string

const (
	// Validación
	CodeSchemaError  Code = "SCHEMA_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"

	// Verification codes
	CodeVerificationCodeNotFound    Code = "VERIFICATION_CODE_NOT_FOUND"
	CodeVerificationCodeExpired     Code = "VERIFICATION_CODE_EXPIRED"
	CodeVerificationCodeAlreadyUsed Code = "VERIFICATION_CODE_ALREADY_USED"
	CodeNotSupported                Code = "NOT_SUPPORTED"

	// Sesiones
	CodeRefreshTokenNotFoundOrExpired Code = "REFRESH_TOKEN_NOT_FOUND_OR_EXPIRED"
	CodeAccessTokenExpired            Code = "ACCESS_TOKEN_EXPIRED"
	CodeUnparsableAccessToken         Code = "UNPARSABLE_ACCESS_TOKEN"
	CodeInvalidAccessToken            Code = "INVALID_ACCESS_TOKEN"
	CodeAccessTokenProjectMismatch    Code = "ACCESS_TOKEN_PROJECT_MISMATCH"
	CodeUserAuthenticationRequired    Code = "USER_AUTHENTICATION_REQUIRED"

	// MFA
	CodeMultiFactorAuthenticationRequired Code = "MULTI_FACTOR_AUTHENTICATION_REQUIRED"
	CodeInvalidTotpCode                   Code = "INVALID_TOTP_CODE"
	CodeTotpNotEnrolled                   Code = "TOTP_NOT_ENROLLED"

	// Cuentas
	CodeSignUpNotEnabled                 Code = "SIGN_UP_NOT_ENABLED"
	CodeUserNotFound                     Code = "USER_NOT_FOUND"
	CodeUserEmailAlreadyExists           Code = "USER_EMAIL_ALREADY_EXISTS"
	CodeEmailPasswordMismatch            Code = "EMAIL_PASSWORD_MISMATCH"
	CodePasswordAuthenticationNotEnabled Code = "PASSWORD_AUTHENTICATION_NOT_ENABLED"
	CodePasswordRequirementsNotMet       Code = "PASSWORD_REQUIREMENTS_NOT_MET"
	CodeMagicLinkNotEnabled              Code = "MAGIC_LINK_NOT_ENABLED"
	CodeTeamNotFound                     Code = "TEAM_NOT_FOUND"
	CodeTeamMembershipAlreadyExists      Code = "TEAM_MEMBERSHIP_ALREADY_EXISTS"
	CodeProjectNotFound                  Code = "PROJECT_NOT_FOUND"
	CodeRedirectURLNotWhitelisted        Code = "REDIRECT_URL_NOT_WHITELISTED"

	// Passkeys
	CodePasskeyAuthenticationNotEnabled Code = "PASSKEY_AUTHENTICATION_NOT_ENABLED"
	CodePasskeyAuthenticationFailed     Code = "PASSKEY_AUTHENTICATION_FAILED"
	CodePasskeyRegistrationFailed       Code = "PASSKEY_REGISTRATION_FAILED"

	// OAuth
	CodeInvalidOAuthClientIDOrSecret                 Code = "INVALID_OAUTH_CLIENT_ID_OR_SECRET"
	CodeOAuthProviderNotFoundOrNotEnabled            Code = "OAUTH_PROVIDER_NOT_FOUND_OR_NOT_ENABLED"
	CodeOAuthExtraScopeNotAvailableWithSharedKeys    Code = "OAUTH_EXTRA_SCOPE_NOT_AVAILABLE_WITH_SHARED_OAUTH_KEYS"
	CodeOAuthCookieNotFound                          Code = "OAUTH_COOKIE_NOT_FOUND"
	CodeInvalidOAuthState                            Code = "INVALID_OAUTH_STATE"
	CodeOuterOAuthTimeout                            Code = "OUTER_OAUTH_TIMEOUT"
	CodeOAuthProviderAccessDenied                    Code = "OAUTH_PROVIDER_ACCESS_DENIED"
	CodeOAuthProviderExchangeFailed                  Code = "OAUTH_PROVIDER_EXCHANGE_FAILED"
	CodeOAuthConnectionAlreadyConnectedToAnotherUser Code = "OAUTH_CONNECTION_ALREADY_CONNECTED_TO_ANOTHER_USER"
	CodeUserAlreadyConnectedToAnotherOAuthConnection Code = "USER_ALREADY_CONNECTED_TO_ANOTHER_OAUTH_CONNECTION"
	CodeOAuthConnectionNotConnectedToUser            Code = "OAUTH_CONNECTION_NOT_CONNECTED_TO_USER"
	CodeOAuthConnectionDoesNotHaveRequiredScope      Code = "OAUTH_CONNECTION_DOES_NOT_HAVE_REQUIRED_SCOPE"
	CodeInvalidAuthorizationCode                     Code = "INVALID_AUTHORIZATION_CODE"
	CodeInvalidGrant                                 Code = "INVALID_GRANT"
	CodeUnsupportedGrantType                         Code = "UNSUPPORTED_GRANT_TYPE"
	CodeInvalidScope                                 Code = "INVALID_SCOPE"

	// Genéricos
	CodeRateLimited Code = "RATE_LIMITED"
	CodeInternal    Code = "INTERNAL_ERROR"
)

// Error es un error conocido con payload estructurado.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Code, así errors.Is(err, autherr.ErrVerificationCodeExpired) funciona con copias.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithDetails devuelve una copia con payload.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithMessage devuelve una copia con otro mensaje.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithCause devuelve una copia envolviendo err (solo para logs).
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// New crea un error conocido.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// As extrae el *Error de una cadena.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf retorna el Code del error o "" si no es un error conocido.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reporta si err es un error conocido con el code dado.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
