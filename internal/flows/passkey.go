package flows

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/redirect"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// PasskeyChallengeExpiry es la vida de los challenges de registro y autenticación.
const PasskeyChallengeExpiry = 5 * time.Minute

const challengeBytes = 32

// PasskeyVerifier verifica las respuestas WebAuthn. WebAuthnVerifier es la implementación
// sobre go-webauthn.
type PasskeyVerifier interface {
	VerifyRegistration(ctx context.Context, in RegistrationCheck) (*VerifiedCredential, error)
	VerifyAuthentication(ctx context.Context, in AuthenticationCheck) (newCounter uint32, err error)
}

// RegistrationCheck son los parámetros esperados de una ceremonia de registro.
type RegistrationCheck struct {
	Response       json.RawMessage
	Challenge      string
	UserHandle     string
	ExpectedOrigin string
	ExpectedRPID   string
}

// VerifiedCredential es la credencial que devolvió un registro válido.
type VerifiedCredential struct {
	CredentialID   string
	PublicKey      []byte
	Counter        uint32
	BackupEligible bool
}

// AuthenticationCheck son los parámetros esperados de una ceremonia de autenticación.
type AuthenticationCheck struct {
	Response       json.RawMessage
	Challenge      string
	ExpectedOrigin string
	ExpectedRPID   string
	Credential     repository.PasskeyCredential
}

type PasskeyRegistrationData struct {
	Challenge  string `json:"challenge"`
	UserHandle string `json:"user_handle"`
}

func (d PasskeyRegistrationData) Validate() error {
	if d.Challenge == "" || d.UserHandle == "" {
		return errors.New("challenge and user_handle are required")
	}
	return nil
}

type PasskeyAuthenticationData struct {
	Challenge string `json:"challenge"`
}

func (d PasskeyAuthenticationData) Validate() error {
	if d.Challenge == "" {
		return errors.New("challenge is required")
	}
	return nil
}

// PasskeyRegisterBody lleva la RegistrationResponseJSON del navegador.
type PasskeyRegisterBody struct {
	Credential json.RawMessage `json:"credential"`
}

func (b PasskeyRegisterBody) Validate() error {
	if len(b.Credential) == 0 {
		return errors.New("credential is required")
	}
	return nil
}

// PasskeySignInBody lleva la AuthenticationResponseJSON del navegador.
type PasskeySignInBody struct {
	AuthenticationResponse json.RawMessage `json:"authentication_response"`
}

func (b PasskeySignInBody) Validate() error {
	if len(b.AuthenticationResponse) == 0 {
		return errors.New("authentication_response is required")
	}
	return nil
}

// PasskeyOptions es lo que necesita el navegador para iniciar la ceremonia.
type PasskeyOptions struct {
	Code       string `json:"code"`
	Challenge  string `json:"challenge"`
	UserHandle string `json:"user_handle,omitempty"`
	RPName     string `json:"rp_name,omitempty"`
}

// PasskeyRegistered es la respuesta del registro.
type PasskeyRegistered struct {
	UserHandle string `json:"user_handle"`
}

// webauthnResponse es lo mínimo que el core lee de las respuestas del navegador.
type webauthnResponse struct {
	ID       string `json:"id"`
	Response struct {
		ClientDataJSON string `json:"clientDataJSON"`
	} `json:"response"`
}

// clientOrigin decodifica clientDataJSON (base64url) y devuelve el credential id y el origin.
func clientOrigin(raw json.RawMessage) (credentialID, origin string, err error) {
	var r webauthnResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", "", err
	}
	cd, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(r.Response.ClientDataJSON, "="))
	if err != nil {
		return "", "", fmt.Errorf("clientDataJSON: %w", err)
	}
	var client struct {
		Origin string `json:"origin"`
	}
	if err := json.Unmarshal(cd, &client); err != nil {
		return "", "", fmt.Errorf("clientDataJSON: %w", err)
	}
	return r.ID, client.Origin, nil
}

// InitiatePasskeyRegistration crea el challenge de registro para el usuario autenticado.
func (s *Service) InitiatePasskeyRegistration(ctx context.Context, project *repository.Project, u *repository.User) (*PasskeyOptions, error) {
	if !project.Config.PasskeyEnabled {
		return nil, autherr.ErrPasskeyAuthenticationNotEnabled
	}
	if u == nil {
		return nil, autherr.ErrUserAuthenticationRequired
	}
	challenge, err := tokens.GenerateOpaqueToken(challengeBytes)
	if err != nil {
		return nil, err
	}
	handle, err := tokens.GenerateOpaqueToken(challengeBytes)
	if err != nil {
		return nil, err
	}
	code, err := s.passkeyReg.CreateCode(ctx, verification.CreateOptions[PasskeyRegistrationData, NoMethod]{
		Project:   project,
		Data:      PasskeyRegistrationData{Challenge: challenge, UserHandle: handle},
		ExpiresIn: PasskeyChallengeExpiry,
	})
	if err != nil {
		return nil, err
	}
	return &PasskeyOptions{Code: code.Code, Challenge: challenge, UserHandle: handle, RPName: project.DisplayName}, nil
}

// RegisterPasskey canjea el challenge y guarda (o reemplaza) la passkey del usuario.
func (s *Service) RegisterPasskey(ctx context.Context, req verification.Request[PasskeyRegisterBody]) (*PasskeyRegistered, error) {
	return s.passkeyReg.UseCode(ctx, req)
}

func (s *Service) validatePasskeyRegistration(_ context.Context, in verification.Input[PasskeyRegistrationData, NoMethod, PasskeyRegisterBody]) error {
	if in.User == nil {
		return autherr.ErrUserAuthenticationRequired
	}
	if !in.Project.Config.PasskeyEnabled {
		return autherr.ErrPasskeyAuthenticationNotEnabled
	}
	return nil
}

func (s *Service) consumePasskeyRegistration(ctx context.Context, in verification.Input[PasskeyRegistrationData, NoMethod, PasskeyRegisterBody]) (*PasskeyRegistered, error) {
	log := s.log(ctx, "RegisterPasskey").With(logger.TenantID(in.Project.ID), logger.UserID(in.User.ID))
	_, origin, err := clientOrigin(in.Body.Credential)
	if err != nil {
		return nil, autherr.ErrPasskeyRegistrationFailed.WithCause(err)
	}
	cfg := in.Project.Config
	rpID, ok := redirect.OriginAllowed(origin, cfg.Domains, cfg.AllowLocalhost)
	if !ok {
		log.Info("passkey origin rejected", logger.String("origin", origin))
		return nil, autherr.ErrPasskeyRegistrationFailed
	}
	cred, err := s.deps.Passkeys.VerifyRegistration(ctx, RegistrationCheck{
		Response:       in.Body.Credential,
		Challenge:      in.Data.Challenge,
		UserHandle:     in.Data.UserHandle,
		ExpectedOrigin: origin,
		ExpectedRPID:   rpID,
	})
	if err != nil {
		log.Info("passkey registration rejected", logger.Err(err))
		return nil, autherr.ErrPasskeyRegistrationFailed.WithCause(err)
	}
	if err := s.deps.Store.Passkeys().Upsert(ctx, &repository.PasskeyCredential{
		TenantID:       in.Project.ID,
		UserID:         in.User.ID,
		CredentialID:   cred.CredentialID,
		UserHandle:     in.Data.UserHandle,
		PublicKey:      cred.PublicKey,
		Counter:        cred.Counter,
		BackupEligible: cred.BackupEligible,
		CreatedAt:      s.deps.Now(),
	}); err != nil {
		return nil, err
	}
	log.Info("passkey registered")
	return &PasskeyRegistered{UserHandle: in.Data.UserHandle}, nil
}

// InitiatePasskeyAuthentication crea un challenge de 5 minutos.
func (s *Service) InitiatePasskeyAuthentication(ctx context.Context, project *repository.Project) (*PasskeyOptions, error) {
	if !project.Config.PasskeyEnabled {
		return nil, autherr.ErrPasskeyAuthenticationNotEnabled
	}
	challenge, err := tokens.GenerateOpaqueToken(challengeBytes)
	if err != nil {
		return nil, err
	}
	code, err := s.passkeyAuth.CreateCode(ctx, verification.CreateOptions[PasskeyAuthenticationData, NoMethod]{
		Project:   project,
		Data:      PasskeyAuthenticationData{Challenge: challenge},
		ExpiresIn: PasskeyChallengeExpiry,
	})
	if err != nil {
		return nil, err
	}
	return &PasskeyOptions{Code: code.Code, Challenge: challenge}, nil
}

// SignInWithPasskey canjea el challenge con la respuesta firmada del autenticador.
func (s *Service) SignInWithPasskey(ctx context.Context, req verification.Request[PasskeySignInBody]) (*SignInResponse, error) {
	return s.passkeyAuth.UseCode(ctx, req)
}

func (s *Service) consumePasskeyAuthentication(ctx context.Context, in verification.Input[PasskeyAuthenticationData, NoMethod, PasskeySignInBody]) (*SignInResponse, error) {
	log := s.log(ctx, "SignInWithPasskey").With(logger.TenantID(in.Project.ID))
	cfg := in.Project.Config
	if !cfg.PasskeyEnabled {
		return nil, autherr.ErrPasskeyAuthenticationNotEnabled
	}
	credID, origin, err := clientOrigin(in.Body.AuthenticationResponse)
	if err != nil {
		return nil, autherr.ErrPasskeyAuthenticationFailed.WithCause(err)
	}
	cred, err := s.deps.Store.Passkeys().GetByCredentialID(ctx, in.Project.ID, credID)
	if repository.IsNotFound(err) {
		log.Info("unknown passkey credential")
		return nil, autherr.ErrPasskeyAuthenticationFailed
	}
	if err != nil {
		return nil, err
	}
	rpID, ok := redirect.OriginAllowed(origin, cfg.Domains, cfg.AllowLocalhost)
	if !ok {
		log.Info("passkey origin rejected", logger.String("origin", origin))
		return nil, autherr.ErrPasskeyAuthenticationFailed
	}
	counter, err := s.deps.Passkeys.VerifyAuthentication(ctx, AuthenticationCheck{
		Response:       in.Body.AuthenticationResponse,
		Challenge:      in.Data.Challenge,
		ExpectedOrigin: origin,
		ExpectedRPID:   rpID,
		Credential:     *cred,
	})
	if err != nil {
		log.Info("passkey assertion rejected", logger.UserID(cred.UserID), logger.Err(err))
		return nil, autherr.ErrPasskeyAuthenticationFailed.WithCause(err)
	}
	if err := s.deps.Store.Passkeys().UpdateCounter(ctx, in.Project.ID, cred.CredentialID, counter); err != nil {
		return nil, err
	}
	if _, err := s.user(ctx, in.Project.ID, cred.UserID); err != nil {
		return nil, err
	}
	return s.issue(ctx, in.Project, cred.UserID, false)
}
