package flows

import (
	"context"
	"errors"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// VerifyEmailData identifica al usuario dueño del email.
type VerifyEmailData struct {
	UserID string `json:"user_id"`
}

func (d VerifyEmailData) Validate() error {
	if d.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// SendVerificationCode manda el link de verificación al email primario del usuario.
func (s *Service) SendVerificationCode(ctx context.Context, project *repository.Project, u *repository.User, callbackURL string) error {
	if u == nil {
		return autherr.ErrUserAuthenticationRequired
	}
	if u.PrimaryEmail == "" {
		return autherr.ErrInvalidInput.WithMessage("The user has no primary email.")
	}
	if callbackURL == "" {
		return autherr.SchemaError(errors.New("callback_url is required"))
	}
	_, _, err := s.verifyEmail.SendCode(ctx, verification.CreateOptions[VerifyEmailData, EmailMethod]{
		Project:     project,
		Method:      EmailMethod{Email: u.PrimaryEmail},
		Data:        VerifyEmailData{UserID: u.ID},
		CallbackURL: callbackURL,
	}, verification.SendOptions{User: u})
	return err
}

func (s *Service) sendVerification(ctx context.Context, code *verification.Code, opts verification.CreateOptions[VerifyEmailData, EmailMethod], send verification.SendOptions) (verification.SendResult, error) {
	s.notify(ctx, opts.Project, opts.Method.Email, email.TemplateEmailVerification, map[string]any{
		"user_display_name": displayName(send.User),
		"link":              code.Link,
	})
	return verification.SendResult{}, nil
}

// VerifyEmail canjea el código de verificación.
func (s *Service) VerifyEmail(ctx context.Context, req verification.Request[NoBody]) error {
	_, err := s.verifyEmail.UseCode(ctx, req)
	return err
}

// CheckEmailVerificationCode valida el código sin consumirlo.
func (s *Service) CheckEmailVerificationCode(ctx context.Context, req verification.Request[NoBody]) error {
	return s.verifyEmail.CheckCode(ctx, req)
}

// consumeVerification marca verificado solo si el email primario sigue siendo el del
// código. Si cambió, el código se consume sin efecto.
func (s *Service) consumeVerification(ctx context.Context, in verification.Input[VerifyEmailData, EmailMethod, NoBody]) (Success, error) {
	log := s.log(ctx, "VerifyEmail").With(logger.TenantID(in.Project.ID), logger.UserID(in.Data.UserID))
	u, err := s.user(ctx, in.Project.ID, in.Data.UserID)
	if err != nil {
		return Success{}, err
	}
	if u.PrimaryEmail != in.Method.Email {
		log.Info("primary email changed since the code was sent")
		return Success{}, nil
	}
	if err := s.deps.Store.Users().MarkEmailVerified(ctx, in.Project.ID, u.ID, in.Method.Email); err != nil && !repository.IsNotFound(err) {
		return Success{}, err
	}
	log.Info("email verified")
	return Success{}, nil
}
