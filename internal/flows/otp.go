package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/validation"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// otpLength son los caracteres del código que se muestran como OTP tipeable; el resto
// vuelve al cliente como nonce.
const otpLength = 6

const (
	OTPTypeLegacy   = "legacy"
	OTPTypeStandard = "standard"
)

// OTPData: sin user_id el usuario se crea al canjear.
type OTPData struct {
	UserID    string `json:"user_id,omitempty"`
	IsNewUser bool   `json:"is_new_user"`
}

func (d OTPData) Validate() error {
	if d.UserID == "" && !d.IsNewUser {
		return errors.New("user_id is required for existing users")
	}
	return nil
}

// OTPMethod es el email y la versión del template.
type OTPMethod struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

func (m OTPMethod) Validate() error {
	if !validation.ValidEmail(m.Email) {
		return errors.New("email is not valid")
	}
	if m.Type != OTPTypeLegacy && m.Type != OTPTypeStandard {
		return errors.New(`type must be "legacy" or "standard"`)
	}
	return nil
}

// SplitOTP parte un código en el OTP (en mayúsculas) y el nonce.
func SplitOTP(code string) (otp, nonce string) {
	if len(code) < otpLength {
		return strings.ToUpper(code), ""
	}
	return strings.ToUpper(code[:otpLength]), code[otpLength:]
}

// SendSignInCode manda OTP + magic link. Devuelve el nonce: el cliente canjea OTP+nonce.
func (s *Service) SendSignInCode(ctx context.Context, project *repository.Project, emailAddr, callbackURL, otpType string) (string, error) {
	if !project.Config.MagicLinkEnabled {
		return "", autherr.ErrMagicLinkNotEnabled
	}
	addr := validation.NormalizeEmail(emailAddr)
	if !validation.ValidEmail(addr) {
		return "", autherr.SchemaError(errors.New("email is not valid"))
	}
	if callbackURL == "" {
		return "", autherr.SchemaError(errors.New("callback_url is required"))
	}
	if otpType == "" {
		otpType = OTPTypeStandard
	}

	data := OTPData{IsNewUser: true}
	var user *repository.User
	u, err := s.deps.Store.Users().GetByAuthEmail(ctx, project.ID, addr)
	switch {
	case err == nil:
		// una cuenta con el email sin verificar no se puede tomar por OTP
		if !u.PrimaryEmailVerified {
			return "", autherr.ErrUserEmailAlreadyExists
		}
		data = OTPData{UserID: u.ID}
		user = u
	case repository.IsNotFound(err):
		if !project.Config.SignUpEnabled {
			return "", autherr.ErrSignUpNotEnabled
		}
	default:
		return "", err
	}

	_, res, err := s.otp.SendCode(ctx, verification.CreateOptions[OTPData, OTPMethod]{
		Project:     project,
		Method:      OTPMethod{Email: addr, Type: otpType},
		Data:        data,
		CallbackURL: callbackURL,
	}, verification.SendOptions{User: user})
	if err != nil {
		return "", err
	}
	return res.Nonce, nil
}

func (s *Service) sendOTP(ctx context.Context, code *verification.Code, opts verification.CreateOptions[OTPData, OTPMethod], send verification.SendOptions) (verification.SendResult, error) {
	otp, nonce := SplitOTP(code.Code)
	s.notify(ctx, opts.Project, opts.Method.Email, email.TemplateSignInCode, map[string]any{
		"user_display_name": displayName(send.User),
		"link":              code.Link,
		"otp":               otp,
	})
	return verification.SendResult{Nonce: nonce}, nil
}

// SignInWithCode canjea el OTP (o el código completo del magic link).
func (s *Service) SignInWithCode(ctx context.Context, req verification.Request[NoBody]) (*SignInResponse, error) {
	return s.otp.UseCode(ctx, req)
}

// CheckSignInCode valida el código sin consumirlo.
func (s *Service) CheckSignInCode(ctx context.Context, req verification.Request[NoBody]) error {
	return s.otp.CheckCode(ctx, req)
}

func (s *Service) consumeOTP(ctx context.Context, in verification.Input[OTPData, OTPMethod, NoBody]) (*SignInResponse, error) {
	userID := in.Data.UserID
	if userID == "" {
		u := &repository.User{
			ID:                      uuid.NewString(),
			TenantID:                in.Project.ID,
			PrimaryEmail:            in.Method.Email,
			PrimaryEmailVerified:    true,
			PrimaryEmailAuthEnabled: true,
			CreatedAt:               s.deps.Now(),
		}
		if err := s.deps.Store.Users().Create(ctx, u); err != nil {
			if repository.IsConflict(err) {
				return nil, autherr.ErrUserEmailAlreadyExists
			}
			return nil, err
		}
		s.log(ctx, "SignInWithCode").Info("user signed up with otp", logger.TenantID(in.Project.ID), logger.UserID(u.ID))
		userID = u.ID
	} else if _, err := s.user(ctx, in.Project.ID, userID); err != nil {
		return nil, err
	}
	return s.issue(ctx, in.Project, userID, in.Data.IsNewUser)
}
