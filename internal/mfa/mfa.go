// Package mfa convierte un primer factor exitoso en un desafío TOTP cuando el usuario lo
// requiere, y canjea el intento con el código TOTP.
package mfa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/security/secretbox"
	"github.com/dropDatabas3/authcore/internal/security/totp"
	"github.com/dropDatabas3/authcore/internal/session"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// AttemptExpiry es la vida de un código MFA_ATTEMPT.
const AttemptExpiry = 5 * time.Minute

// totpWindow acepta el paso anterior y el siguiente.
const totpWindow = 1

// AttemptData es la data del código de intento.
type AttemptData struct {
	UserID    string `json:"user_id"`
	IsNewUser bool   `json:"is_new_user"`
}

func (d AttemptData) Validate() error {
	if d.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// AttemptMethod es vacío: el intento no se entrega por ningún canal.
type AttemptMethod struct{}

func (AttemptMethod) Validate() error { return nil }

// SignInBody es {type: "totp", totp}.
type SignInBody struct {
	Type string `json:"type"`
	TOTP string `json:"totp"`
}

func (b SignInBody) Validate() error {
	if b.Type != "totp" {
		return errors.New(`type must be "totp"`)
	}
	if strings.TrimSpace(b.TOTP) == "" {
		return errors.New("totp is required")
	}
	return nil
}

// SignInResponse es la respuesta de sign-in compartida por todos los flujos.
type SignInResponse struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
	IsNewUser    bool   `json:"is_new_user"`
	UserID       string `json:"user_id"`
}

// Deps del servicio MFA.
type Deps struct {
	Codes    verification.Deps
	Users    repository.UserRepository
	Box      *secretbox.Box
	Sessions *session.Issuer
	Issuer   string // issuer del otpauth:// URL
	Now      func() time.Time
}

// Service agrupa el gate, el handler de intento y el enrolamiento TOTP.
type Service struct {
	deps    Deps
	attempt *verification.Engine[AttemptData, AttemptMethod, SignInBody, *SignInResponse]
}

func New(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Service{deps: d}
	s.attempt = verification.New(verification.Handler[AttemptData, AttemptMethod, SignInBody, *SignInResponse]{
		Type:     repository.CodeTypeMFAAttempt,
		Validate: s.validateTOTP,
		Consume:  s.consume,
	}, d.Codes)
	return s
}

// RequireMfaOrContinue devuelve nil si el usuario no requiere TOTP. Si lo requiere crea un
// intento de 5 minutos y devuelve MultiFactorAuthenticationRequired con su código.
func (s *Service) RequireMfaOrContinue(ctx context.Context, project *repository.Project, userID string, isNewUser bool) error {
	u, err := s.deps.Users.GetByID(ctx, project.ID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return autherr.ErrUserNotFound
		}
		return err
	}
	if !u.RequiresTOTPMFA {
		return nil
	}
	code, err := s.attempt.CreateCode(ctx, verification.CreateOptions[AttemptData, AttemptMethod]{
		Project:   project,
		Data:      AttemptData{UserID: userID, IsNewUser: isNewUser},
		ExpiresIn: AttemptExpiry,
	})
	if err != nil {
		return fmt.Errorf("mfa: create attempt: %w", err)
	}
	logger.From(ctx).Info("mfa required",
		logger.Layer("mfa"), logger.TenantID(project.ID), logger.UserID(userID))
	return autherr.MultiFactorAuthenticationRequired(code.Code)
}

// SignIn canjea el intento. Con un TOTP incorrecto el intento sigue usable hasta vencer.
func (s *Service) SignIn(ctx context.Context, req verification.Request[SignInBody]) (*SignInResponse, error) {
	return s.attempt.UseCode(ctx, req)
}

// Check valida el intento sin consumirlo.
func (s *Service) Check(ctx context.Context, req verification.Request[SignInBody]) error {
	return s.attempt.CheckCode(ctx, req)
}

func (s *Service) validateTOTP(ctx context.Context, in verification.Input[AttemptData, AttemptMethod, SignInBody]) error {
	u, err := s.deps.Users.GetByID(ctx, in.Project.ID, in.Data.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return autherr.ErrUserNotFound
		}
		return err
	}
	secret, err := s.secretOf(u)
	if err != nil {
		return err
	}
	if ok, _ := totp.Verify(secret, in.Body.TOTP, s.deps.Now(), totpWindow, nil); !ok {
		return autherr.ErrInvalidTotpCode
	}
	return nil
}

func (s *Service) consume(ctx context.Context, in verification.Input[AttemptData, AttemptMethod, SignInBody]) (*SignInResponse, error) {
	pair, err := s.deps.Sessions.CreateAuthTokens(ctx, in.Project.ID, in.Data.UserID, nil)
	if err != nil {
		return nil, err
	}
	return &SignInResponse{
		RefreshToken: pair.RefreshToken,
		AccessToken:  pair.AccessToken,
		IsNewUser:    in.Data.IsNewUser,
		UserID:       in.Data.UserID,
	}, nil
}

// secretOf abre el secreto sellado. Un usuario con MFA y sin secreto es un invariante roto.
func (s *Service) secretOf(u *repository.User) ([]byte, error) {
	if u.TOTPSecret == "" {
		return nil, autherr.ErrTotpNotEnrolled
	}
	b32, err := s.deps.Box.Open(u.TOTPSecret)
	if err != nil {
		return nil, autherr.ErrInternal.WithCause(fmt.Errorf("open totp secret: %w", err))
	}
	raw, err := totp.DecodeSecret(b32)
	if err != nil {
		return nil, autherr.ErrInternal.WithCause(err)
	}
	return raw, nil
}
