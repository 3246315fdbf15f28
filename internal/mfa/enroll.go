package mfa

import (
	"context"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/security/totp"
)

// Enrollment se muestra una sola vez al usuario (QR + secreto manual).
type Enrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

func (s *Service) user(ctx context.Context, project *repository.Project, userID string) (*repository.User, error) {
	u, err := s.deps.Users.GetByID(ctx, project.ID, userID)
	if repository.IsNotFound(err) {
		return nil, autherr.ErrUserNotFound
	}
	return u, err
}

// Enroll genera un secreto nuevo y lo guarda sellado sin activar MFA todavía. Con MFA ya
// activo exige un código válido del secreto vigente (mismo requisito que Disable).
func (s *Service) Enroll(ctx context.Context, project *repository.Project, userID, code string) (*Enrollment, error) {
	u, err := s.user(ctx, project, userID)
	if err != nil {
		return nil, err
	}
	if u.RequiresTOTPMFA {
		secret, err := s.secretOf(u)
		if err != nil {
			return nil, err
		}
		if ok, _ := totp.Verify(secret, code, s.deps.Now(), totpWindow, nil); !ok {
			return nil, autherr.ErrInvalidTotpCode
		}
	}
	_, b32, err := totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	sealed, err := s.deps.Box.Seal(b32)
	if err != nil {
		return nil, err
	}
	// re-enrolar desactiva MFA hasta confirmar el secreto nuevo
	if err := s.deps.Users.SetTOTP(ctx, project.ID, userID, sealed, false); err != nil {
		return nil, err
	}
	account := u.PrimaryEmail
	if account == "" {
		account = u.ID
	}
	issuer := s.deps.Issuer
	if project.DisplayName != "" {
		issuer = project.DisplayName
	}
	return &Enrollment{Secret: b32, OTPAuthURL: totp.OTPAuthURL(issuer, account, b32)}, nil
}

// Confirm activa MFA si el código corresponde al secreto enrolado.
func (s *Service) Confirm(ctx context.Context, project *repository.Project, userID, code string) error {
	u, err := s.user(ctx, project, userID)
	if err != nil {
		return err
	}
	secret, err := s.secretOf(u)
	if err != nil {
		return err
	}
	if ok, _ := totp.Verify(secret, code, s.deps.Now(), totpWindow, nil); !ok {
		return autherr.ErrInvalidTotpCode
	}
	if err := s.deps.Users.SetTOTP(ctx, project.ID, userID, u.TOTPSecret, true); err != nil {
		return err
	}
	logger.From(ctx).Info("totp enabled", logger.Layer("mfa"), logger.TenantID(project.ID), logger.UserID(userID))
	return nil
}

// Disable exige un código válido y borra el secreto.
func (s *Service) Disable(ctx context.Context, project *repository.Project, userID, code string) error {
	u, err := s.user(ctx, project, userID)
	if err != nil {
		return err
	}
	secret, err := s.secretOf(u)
	if err != nil {
		return err
	}
	if ok, _ := totp.Verify(secret, code, s.deps.Now(), totpWindow, nil); !ok {
		return autherr.ErrInvalidTotpCode
	}
	if err := s.deps.Users.SetTOTP(ctx, project.ID, userID, "", false); err != nil {
		return err
	}
	logger.From(ctx).Info("totp disabled", logger.Layer("mfa"), logger.TenantID(project.ID), logger.UserID(userID))
	return nil
}
