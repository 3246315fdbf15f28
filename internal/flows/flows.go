// Package flows arma los casos de uso de autenticación sobre el engine de verification
// codes: password, reset, verificación de email, OTP/magic link, invitaciones a equipos y
// passkeys. Cada flujo es un verification.Handler tipado más las operaciones que lo usan.
package flows

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/mfa"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/security/password"
	"github.com/dropDatabas3/authcore/internal/session"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// SignInResponse es la respuesta común de todos los sign-in.
type SignInResponse = mfa.SignInResponse

// MFAGate decide si un primer factor exitoso necesita TOTP.
type MFAGate interface {
	RequireMfaOrContinue(ctx context.Context, project *repository.Project, userID string, isNewUser bool) error
}

// NoMethod / NoBody son los esquemas vacíos.
type NoMethod struct{}

func (NoMethod) Validate() error { return nil }

type NoBody struct{}

// Success es el resultado de los canjes que no devuelven datos.
type Success struct{}

// Deps de los flujos.
type Deps struct {
	Store    repository.Store
	Codes    verification.Deps
	Sessions *session.Issuer
	MFA      MFAGate
	Notifier email.Notifier
	Hasher   password.Hasher
	Policy   password.Policy
	Passkeys PasskeyVerifier
	Now      func() time.Time
}

// Service expone los flujos.
type Service struct {
	deps Deps

	reset       *verification.Engine[ResetData, EmailMethod, ResetBody, Success]
	verifyEmail *verification.Engine[VerifyEmailData, EmailMethod, NoBody, Success]
	otp         *verification.Engine[OTPData, OTPMethod, NoBody, *SignInResponse]
	invitation  *verification.Engine[InvitationData, EmailMethod, NoBody, Success]
	passkeyReg  *verification.Engine[PasskeyRegistrationData, NoMethod, PasskeyRegisterBody, *PasskeyRegistered]
	passkeyAuth *verification.Engine[PasskeyAuthenticationData, NoMethod, PasskeySignInBody, *SignInResponse]
}

func New(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Codes.Now == nil {
		d.Codes.Now = d.Now
	}
	if d.Codes.Codes == nil {
		d.Codes.Codes = d.Store.VerificationCodes()
	}
	if d.Codes.Tx == nil {
		d.Codes.Tx = d.Store
	}
	s := &Service{deps: d}

	s.reset = verification.New(verification.Handler[ResetData, EmailMethod, ResetBody, Success]{
		Type:    repository.CodeTypePasswordReset,
		Send:    s.sendReset,
		Consume: s.consumeReset,
	}, d.Codes)
	s.verifyEmail = verification.New(verification.Handler[VerifyEmailData, EmailMethod, NoBody, Success]{
		Type:    repository.CodeTypeEmailVerification,
		Send:    s.sendVerification,
		Consume: s.consumeVerification,
	}, d.Codes)
	s.otp = verification.New(verification.Handler[OTPData, OTPMethod, NoBody, *SignInResponse]{
		Type:    repository.CodeTypeOneTimePassword,
		Send:    s.sendOTP,
		Consume: s.consumeOTP,
	}, d.Codes)
	s.invitation = verification.New(verification.Handler[InvitationData, EmailMethod, NoBody, Success]{
		Type:     repository.CodeTypeTeamInvitation,
		Send:     s.sendInvitation,
		Validate: s.validateInvitation,
		Consume:  s.consumeInvitation,
		Details:  s.invitationDetails,
	}, d.Codes)
	s.passkeyReg = verification.New(verification.Handler[PasskeyRegistrationData, NoMethod, PasskeyRegisterBody, *PasskeyRegistered]{
		Type:     repository.CodeTypePasskeyRegistrationChallenge,
		Validate: s.validatePasskeyRegistration,
		Consume:  s.consumePasskeyRegistration,
	}, d.Codes)
	s.passkeyAuth = verification.New(verification.Handler[PasskeyAuthenticationData, NoMethod, PasskeySignInBody, *SignInResponse]{
		Type:    repository.CodeTypePasskeyAuthenticationChallenge,
		Consume: s.consumePasskeyAuthentication,
	}, d.Codes)
	return s
}

func (s *Service) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("flows"), logger.Op(op))
}

// issue corre el gate de MFA y, si no hace falta, crea la sesión.
func (s *Service) issue(ctx context.Context, project *repository.Project, userID string, isNewUser bool) (*SignInResponse, error) {
	if s.deps.MFA != nil {
		if err := s.deps.MFA.RequireMfaOrContinue(ctx, project, userID, isNewUser); err != nil {
			return nil, err
		}
	}
	pair, err := s.deps.Sessions.CreateAuthTokens(ctx, project.ID, userID, nil)
	if err != nil {
		return nil, err
	}
	return &SignInResponse{
		RefreshToken: pair.RefreshToken,
		AccessToken:  pair.AccessToken,
		IsNewUser:    isNewUser,
		UserID:       userID,
	}, nil
}

// notify entrega un email. Un fallo de entrega no invalida el código ya creado: se loguea.
func (s *Service) notify(ctx context.Context, project *repository.Project, recipient string, tmpl email.Template, vars map[string]any) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.SendTemplatedMessage(ctx, project, recipient, tmpl, vars); err != nil {
		s.log(ctx, "notify").Warn("email delivery failed",
			logger.TenantID(project.ID), logger.String("template", string(tmpl)), logger.Err(err))
	}
}

func (s *Service) user(ctx context.Context, tenantID, id string) (*repository.User, error) {
	u, err := s.deps.Store.Users().GetByID(ctx, tenantID, id)
	if repository.IsNotFound(err) {
		return nil, autherr.ErrUserNotFound
	}
	return u, err
}

func displayName(u *repository.User) string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.PrimaryEmail
}
