package autherr

// Errores predefinidos. Devolverlos tal cual está bien; para agregar payload usar
// WithDetails/WithMessage, que devuelven copias.
var (
	ErrSchema       = New(CodeSchemaError, "Request does not match the expected schema.")
	ErrInvalidInput = New(CodeInvalidInput, "Invalid input.")

	ErrVerificationCodeNotFound    = New(CodeVerificationCodeNotFound, "The verification code does not exist for this project.")
	ErrVerificationCodeExpired     = New(CodeVerificationCodeExpired, "The verification code has expired.")
	ErrVerificationCodeAlreadyUsed = New(CodeVerificationCodeAlreadyUsed, "The verification link has already been used.")
	ErrNotSupported                = New(CodeNotSupported, "This operation is not supported for this code type.")

	ErrRefreshTokenNotFoundOrExpired = New(CodeRefreshTokenNotFoundOrExpired, "Refresh token not found for this project, or the session has expired/been revoked.")
	ErrAccessTokenExpired            = New(CodeAccessTokenExpired, "Access token has expired. Please refresh it and try again.")
	ErrUnparsableAccessToken         = New(CodeUnparsableAccessToken, "Access token is not a valid JWT.")
	ErrInvalidAccessToken            = New(CodeInvalidAccessToken, "Access token is invalid.")
	ErrAccessTokenProjectMismatch    = New(CodeAccessTokenProjectMismatch, "The access token is not valid for this project.")
	ErrUserAuthenticationRequired    = New(CodeUserAuthenticationRequired, "User authentication required for this endpoint.")

	ErrInvalidTotpCode = New(CodeInvalidTotpCode, "The TOTP code is invalid. Please try again.")
	ErrTotpNotEnrolled = New(CodeTotpNotEnrolled, "The user has no TOTP secret enrolled.")

	ErrSignUpNotEnabled                 = New(CodeSignUpNotEnabled, "Creation of new accounts is not enabled for this project. Please ask the project owner to enable it.")
	ErrUserNotFound                     = New(CodeUserNotFound, "User not found.")
	ErrUserEmailAlreadyExists           = New(CodeUserEmailAlreadyExists, "User with this email already exists.")
	ErrEmailPasswordMismatch            = New(CodeEmailPasswordMismatch, "Wrong e-mail or password.")
	ErrPasswordAuthenticationNotEnabled = New(CodePasswordAuthenticationNotEnabled, "Password authentication is not enabled for this project.")
	ErrPasswordRequirementsNotMet       = New(CodePasswordRequirementsNotMet, "Password does not meet requirements.")
	ErrMagicLinkNotEnabled              = New(CodeMagicLinkNotEnabled, "Magic link sign-in is not enabled for this project.")
	ErrTeamNotFound                     = New(CodeTeamNotFound, "Team not found.")
	ErrTeamMembershipAlreadyExists      = New(CodeTeamMembershipAlreadyExists, "Team membership already exists.")
	ErrProjectNotFound                  = New(CodeProjectNotFound, "Project not found or is not accessible with the current credentials.")
	ErrRedirectURLNotWhitelisted        = New(CodeRedirectURLNotWhitelisted, "Redirect URL not whitelisted. Did you forget to add this domain to the trusted domains list on the dashboard?")

	ErrPasskeyAuthenticationNotEnabled = New(CodePasskeyAuthenticationNotEnabled, "Passkey authentication is not enabled for this project.")
	ErrPasskeyAuthenticationFailed     = New(CodePasskeyAuthenticationFailed, "Passkey authentication failed.")
	ErrPasskeyRegistrationFailed       = New(CodePasskeyRegistrationFailed, "Passkey registration failed.")

	ErrInvalidOAuthClientIDOrSecret                 = New(CodeInvalidOAuthClientIDOrSecret, "The OAuth client ID or secret is invalid.")
	ErrOAuthProviderNotFoundOrNotEnabled            = New(CodeOAuthProviderNotFoundOrNotEnabled, "The OAuth provider is not found or not enabled.")
	ErrOAuthExtraScopeNotAvailableWithSharedKeys    = New(CodeOAuthExtraScopeNotAvailableWithSharedKeys, "Extra scopes are not available with shared OAuth keys. Please add your own OAuth keys on the dashboard to use extra scopes.")
	ErrOAuthCookieNotFound                          = New(CodeOAuthCookieNotFound, "OAuth cookie not found. This is likely because you refreshed the page during the OAuth sign in process. Please try signing in again.")
	ErrInvalidOAuthState                            = New(CodeInvalidOAuthState, "Invalid OAuth cookie. Please try signing in again.")
	ErrOuterOAuthTimeout                            = New(CodeOuterOAuthTimeout, "The OAuth flow has timed out. Please sign in again.")
	ErrOAuthProviderAccessDenied                    = New(CodeOAuthProviderAccessDenied, "The OAuth provider denied access to the user.")
	ErrOAuthProviderExchangeFailed                  = New(CodeOAuthProviderExchangeFailed, "The OAuth provider could not complete the sign in. Please try signing in again.")
	ErrOAuthConnectionAlreadyConnectedToAnotherUser = New(CodeOAuthConnectionAlreadyConnectedToAnotherUser, "The OAuth connection is already connected to another user.")
	ErrUserAlreadyConnectedToAnotherOAuthConnection = New(CodeUserAlreadyConnectedToAnotherOAuthConnection, "The user is already connected to another OAuth account.")
	ErrOAuthConnectionNotConnectedToUser            = New(CodeOAuthConnectionNotConnectedToUser, "The OAuth connection is not connected to any user.")
	ErrOAuthConnectionDoesNotHaveRequiredScope      = New(CodeOAuthConnectionDoesNotHaveRequiredScope, "The OAuth connection does not have the required scope.")
	ErrInvalidAuthorizationCode                     = New(CodeInvalidAuthorizationCode, "The given authorization code is invalid.")
	ErrInvalidGrant                                 = New(CodeInvalidGrant, "The provided authorization grant is invalid, expired or revoked.")
	ErrUnsupportedGrantType                         = New(CodeUnsupportedGrantType, "The authorization grant type is not supported.")
	ErrInvalidScope                                 = New(CodeInvalidScope, "The requested scope is invalid.")

	ErrRateLimited = New(CodeRateLimited, "Too many requests. Please try again later.")
	ErrInternal    = New(CodeInternal, "An internal error occurred.")
)

// MultiFactorAuthenticationRequired se devuelve en vez de tokens cuando el usuario tiene
// TOTP habilitado. attemptCode es el código del MFA_ATTEMPT a canjear con el TOTP.
func MultiFactorAuthenticationRequired(attemptCode string) *Error {
	return &Error{
		Code:    CodeMultiFactorAuthenticationRequired,
		Message: "Multi-factor authentication is required for this user.",
		Details: map[string]any{"attempt_code": attemptCode},
	}
}

// AttemptCode extrae el attempt code de un error MFA-required.
func AttemptCode(err error) (string, bool) {
	e, ok := As(err)
	if !ok || e.Code != CodeMultiFactorAuthenticationRequired {
		return "", false
	}
	s, ok := e.Details["attempt_code"].(string)
	return s, ok
}

// PasswordRequirementsNotMet lleva las reglas que fallaron.
func PasswordRequirementsNotMet(reasons []string) *Error {
	return ErrPasswordRequirementsNotMet.WithDetails(map[string]any{"reasons": reasons})
}

// SchemaError lleva el detalle de validación por campo.
func SchemaError(err error) *Error {
	return ErrSchema.WithDetails(map[string]any{"message": err.Error()}).WithCause(err)
}
