package flows

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/redirect"
	"github.com/dropDatabas3/authcore/internal/validation"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// EmailMethod es el canal de entrega de los códigos enviados por email.
type EmailMethod struct {
	Email string `json:"email"`
}

func (m EmailMethod) Validate() error {
	if !validation.ValidEmail(m.Email) {
		return errors.New("email is not valid")
	}
	return nil
}

// ResetData identifica al usuario que resetea.
type ResetData struct {
	UserID string `json:"user_id"`
}

func (d ResetData) Validate() error {
	if d.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// ResetBody es {password}.
type ResetBody struct {
	Password string `json:"password"`
}

func (b ResetBody) Validate() error {
	if b.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// SignInWithPassword valida email/password. Email desconocido y password incorrecto dan el
// mismo error.
func (s *Service) SignInWithPassword(ctx context.Context, project *repository.Project, emailAddr, plain string) (*SignInResponse, error) {
	if !project.Config.CredentialEnabled {
		return nil, autherr.ErrPasswordAuthenticationNotEnabled
	}
	u, err := s.deps.Store.Users().GetByAuthEmail(ctx, project.ID, validation.NormalizeEmail(emailAddr))
	if repository.IsNotFound(err) {
		return nil, autherr.ErrEmailPasswordMismatch
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || !s.deps.Hasher.Verify(plain, u.PasswordHash) {
		s.log(ctx, "SignInWithPassword").Info("password mismatch", logger.TenantID(project.ID), logger.UserID(u.ID))
		return nil, autherr.ErrEmailPasswordMismatch
	}
	return s.issue(ctx, project, u.ID, false)
}

// SignUpWithPassword crea el usuario y la sesión. Si hay verificationCallbackURL manda el
// email de verificación; un fallo de entrega no hace fallar el registro.
func (s *Service) SignUpWithPassword(ctx context.Context, project *repository.Project, emailAddr, plain, verificationCallbackURL string) (*SignInResponse, error) {
	log := s.log(ctx, "SignUpWithPassword").With(logger.TenantID(project.ID))

	if !project.Config.CredentialEnabled {
		return nil, autherr.ErrPasswordAuthenticationNotEnabled
	}
	if !project.Config.SignUpEnabled {
		return nil, autherr.ErrSignUpNotEnabled
	}
	addr := validation.NormalizeEmail(emailAddr)
	if !validation.ValidEmail(addr) {
		return nil, autherr.SchemaError(errors.New("email is not valid"))
	}
	if ok, reasons := s.deps.Policy.Validate(plain); !ok {
		return nil, autherr.PasswordRequirementsNotMet(reasons)
	}
	cfg := project.Config
	if verificationCallbackURL != "" && !redirect.IsAllowed(verificationCallbackURL, cfg.Domains, cfg.AllowLocalhost) {
		return nil, autherr.ErrRedirectURLNotWhitelisted
	}
	hash, err := s.deps.Hasher.Hash(plain)
	if err != nil {
		return nil, err
	}

	u := &repository.User{
		ID:                      uuid.NewString(),
		TenantID:                project.ID,
		PrimaryEmail:            addr,
		PrimaryEmailAuthEnabled: true,
		PasswordHash:            hash,
		CreatedAt:               s.deps.Now(),
	}
	if err := s.deps.Store.Users().Create(ctx, u); err != nil {
		if repository.IsConflict(err) {
			return nil, autherr.ErrUserEmailAlreadyExists
		}
		return nil, err
	}
	log.Info("user signed up", logger.UserID(u.ID))

	if verificationCallbackURL != "" {
		if err := s.SendVerificationCode(ctx, project, u, verificationCallbackURL); err != nil {
			log.Warn("could not send verification email", logger.UserID(u.ID), logger.Err(err))
		}
	}
	return s.issue(ctx, project, u.ID, true)
}

// SendPasswordResetCode manda el link de reset. No revela si el email existe: un email
// desconocido solo queda en los logs.
func (s *Service) SendPasswordResetCode(ctx context.Context, project *repository.Project, emailAddr, callbackURL string) error {
	log := s.log(ctx, "SendPasswordResetCode").With(logger.TenantID(project.ID))
	if !project.Config.CredentialEnabled {
		return autherr.ErrPasswordAuthenticationNotEnabled
	}
	if callbackURL == "" {
		return autherr.SchemaError(errors.New("callback_url is required"))
	}
	// antes del lookup, para que un email desconocido no cambie la respuesta
	if !redirect.IsAllowed(callbackURL, project.Config.Domains, project.Config.AllowLocalhost) {
		return autherr.ErrRedirectURLNotWhitelisted
	}
	addr := validation.NormalizeEmail(emailAddr)
	u, err := s.deps.Store.Users().GetByAuthEmail(ctx, project.ID, addr)
	if repository.IsNotFound(err) {
		log.Info("password reset requested for unknown email",
			logger.String("email", validation.MaskEmail(addr)), logger.ErrorCode(string(autherr.CodeUserNotFound)))
		return nil
	}
	if err != nil {
		return err
	}
	_, _, err = s.reset.SendCode(ctx, verification.CreateOptions[ResetData, EmailMethod]{
		Project:     project,
		Method:      EmailMethod{Email: addr},
		Data:        ResetData{UserID: u.ID},
		CallbackURL: callbackURL,
	}, verification.SendOptions{User: u})
	return err
}

func (s *Service) sendReset(ctx context.Context, code *verification.Code, opts verification.CreateOptions[ResetData, EmailMethod], send verification.SendOptions) (verification.SendResult, error) {
	s.notify(ctx, opts.Project, opts.Method.Email, email.TemplatePasswordReset, map[string]any{
		"user_display_name": displayName(send.User),
		"link":              code.Link,
		"expires_in":        code.ExpiresAt.Sub(s.deps.Now()).Round(time.Minute).String(),
	})
	return verification.SendResult{}, nil
}

// ResetPassword canjea el código de reset. Si el password no cumple la política el código
// sigue usable.
func (s *Service) ResetPassword(ctx context.Context, req verification.Request[ResetBody]) error {
	_, err := s.reset.UseCode(ctx, req)
	return err
}

// CheckPasswordResetCode valida el código sin consumirlo.
func (s *Service) CheckPasswordResetCode(ctx context.Context, req verification.Request[ResetBody]) error {
	return s.reset.CheckCode(ctx, req)
}

func (s *Service) consumeReset(ctx context.Context, in verification.Input[ResetData, EmailMethod, ResetBody]) (Success, error) {
	if ok, reasons := s.deps.Policy.Validate(in.Body.Password); !ok {
		return Success{}, autherr.PasswordRequirementsNotMet(reasons)
	}
	hash, err := s.deps.Hasher.Hash(in.Body.Password)
	if err != nil {
		return Success{}, err
	}
	err = s.deps.Store.Users().UpdatePassword(ctx, in.Project.ID, in.Data.UserID, hash)
	if repository.IsNotFound(err) {
		return Success{}, autherr.ErrUserNotFound
	}
	if err != nil {
		return Success{}, err
	}
	s.log(ctx, "ResetPassword").Info("password reset", logger.TenantID(in.Project.ID), logger.UserID(in.Data.UserID))
	return Success{}, nil
}
