package flows

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// ErrSignCountNotIncreased indica un autenticador posiblemente clonado.
var ErrSignCountNotIncreased = errors.New("webauthn: sign count did not increase")

// WebAuthnVerifier verifica las ceremonias con go-webauthn. El relying party se arma por
// ceremonia con el RP ID y el origin que ya aceptó el allow-list del proyecto.
type WebAuthnVerifier struct {
	// RequireUserVerification exige el flag UV además de UP.
	RequireUserVerification bool
}

var _ PasskeyVerifier = WebAuthnVerifier{}

// passkeyUser adapta una credencial guardada a webauthn.User.
type passkeyUser struct {
	handle []byte
	creds  []webauthn.Credential
}

func (u passkeyUser) WebAuthnID() []byte                         { return u.handle }
func (u passkeyUser) WebAuthnName() string                       { return "" }
func (u passkeyUser) WebAuthnDisplayName() string                { return "" }
func (u passkeyUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func (v WebAuthnVerifier) relyingParty(rpID, origin string) (*webauthn.WebAuthn, error) {
	return webauthn.New(&webauthn.Config{
		RPID:          rpID,
		RPDisplayName: rpID,
		RPOrigins:     []string{origin},
	})
}

func (v WebAuthnVerifier) session(challenge, rpID string, handle []byte) webauthn.SessionData {
	uv := protocol.VerificationPreferred
	if v.RequireUserVerification {
		uv = protocol.VerificationRequired
	}
	return webauthn.SessionData{
		Challenge:        challenge,
		RelyingPartyID:   rpID,
		UserID:           handle,
		UserVerification: uv,
		CredParams:       webauthn.CredentialParametersDefault(),
	}
}

func decodeB64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func (v WebAuthnVerifier) VerifyRegistration(_ context.Context, in RegistrationCheck) (*VerifiedCredential, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBytes(in.Response)
	if err != nil {
		return nil, fmt.Errorf("parse registration response: %w", err)
	}
	handle, err := decodeB64URL(in.UserHandle)
	if err != nil {
		return nil, fmt.Errorf("user handle: %w", err)
	}
	rp, err := v.relyingParty(in.ExpectedRPID, in.ExpectedOrigin)
	if err != nil {
		return nil, err
	}
	cred, err := rp.CreateCredential(passkeyUser{handle: handle}, v.session(in.Challenge, in.ExpectedRPID, handle), parsed)
	if err != nil {
		return nil, err
	}
	return &VerifiedCredential{
		CredentialID:   base64.RawURLEncoding.EncodeToString(cred.ID),
		PublicKey:      cred.PublicKey,
		Counter:        cred.Authenticator.SignCount,
		BackupEligible: cred.Flags.BackupEligible,
	}, nil
}

func (v WebAuthnVerifier) VerifyAuthentication(_ context.Context, in AuthenticationCheck) (uint32, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBytes(in.Response)
	if err != nil {
		return 0, fmt.Errorf("parse assertion response: %w", err)
	}
	credID, err := decodeB64URL(in.Credential.CredentialID)
	if err != nil {
		return 0, fmt.Errorf("credential id: %w", err)
	}
	handle, err := decodeB64URL(in.Credential.UserHandle)
	if err != nil {
		return 0, fmt.Errorf("user handle: %w", err)
	}
	rp, err := v.relyingParty(in.ExpectedRPID, in.ExpectedOrigin)
	if err != nil {
		return 0, err
	}
	user := passkeyUser{handle: handle, creds: []webauthn.Credential{{
		ID:            credID,
		PublicKey:     in.Credential.PublicKey,
		Flags:         webauthn.CredentialFlags{BackupEligible: in.Credential.BackupEligible},
		Authenticator: webauthn.Authenticator{SignCount: in.Credential.Counter},
	}}}
	session := v.session(in.Challenge, in.ExpectedRPID, handle)
	session.AllowedCredentialIDs = [][]byte{credID}

	cred, err := rp.ValidateLogin(user, session, parsed)
	if err != nil {
		return 0, err
	}
	if cred.Authenticator.CloneWarning {
		return 0, ErrSignCountNotIncreased
	}
	return cred.Authenticator.SignCount, nil
}
