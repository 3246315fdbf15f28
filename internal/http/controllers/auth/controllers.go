// Package auth contiene los controllers de sign-in/sign-up: password, OTP, MFA y passkeys.
package auth

import (
	"context"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/flows"
	"github.com/dropDatabas3/authcore/internal/mfa"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// PasswordFlows son los flujos de credenciales.
type PasswordFlows interface {
	SignInWithPassword(ctx context.Context, project *repository.Project, email, password string) (*flows.SignInResponse, error)
	SignUpWithPassword(ctx context.Context, project *repository.Project, email, password, verificationCallbackURL string) (*flows.SignInResponse, error)
	SendPasswordResetCode(ctx context.Context, project *repository.Project, email, callbackURL string) error
	ResetPassword(ctx context.Context, req verification.Request[flows.ResetBody]) error
	CheckPasswordResetCode(ctx context.Context, req verification.Request[flows.ResetBody]) error
}

// OTPFlows es el sign-in por código / magic link.
type OTPFlows interface {
	SendSignInCode(ctx context.Context, project *repository.Project, email, callbackURL, otpType string) (string, error)
	SignInWithCode(ctx context.Context, req verification.Request[flows.NoBody]) (*flows.SignInResponse, error)
	CheckSignInCode(ctx context.Context, req verification.Request[flows.NoBody]) error
}

// PasskeyFlows son las dos ceremonias WebAuthn.
type PasskeyFlows interface {
	InitiatePasskeyRegistration(ctx context.Context, project *repository.Project, u *repository.User) (*flows.PasskeyOptions, error)
	RegisterPasskey(ctx context.Context, req verification.Request[flows.PasskeyRegisterBody]) (*flows.PasskeyRegistered, error)
	InitiatePasskeyAuthentication(ctx context.Context, project *repository.Project) (*flows.PasskeyOptions, error)
	SignInWithPasskey(ctx context.Context, req verification.Request[flows.PasskeySignInBody]) (*flows.SignInResponse, error)
}

// MFAService es el segundo factor TOTP.
type MFAService interface {
	SignIn(ctx context.Context, req verification.Request[mfa.SignInBody]) (*mfa.SignInResponse, error)
	Enroll(ctx context.Context, project *repository.Project, userID, code string) (*mfa.Enrollment, error)
	Confirm(ctx context.Context, project *repository.Project, userID, code string) error
	Disable(ctx context.Context, project *repository.Project, userID, code string) error
}

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Password *PasswordController
	OTP      *OTPController
	MFA      *MFAController
	Passkey  *PasskeyController
}

func NewControllers(f *flows.Service, m *mfa.Service) *Controllers {
	return &Controllers{
		Password: NewPasswordController(f),
		OTP:      NewOTPController(f),
		MFA:      NewMFAController(m),
		Passkey:  NewPasskeyController(f),
	}
}
