// Package dto define los bodies JSON de la API.
package dto

import "encoding/json"

type PasswordSignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PasswordSignUpRequest struct {
	Email                   string `json:"email"`
	Password                string `json:"password"`
	VerificationCallbackURL string `json:"verification_callback_url,omitempty"`
}

type SendResetCodeRequest struct {
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
}

type ResetPasswordRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

// CodeRequest es el body de los canjes y check-code sin datos extra.
type CodeRequest struct {
	Code string `json:"code"`
}

type SendSignInCodeRequest struct {
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
	Type        string `json:"type,omitempty"`
}

type SendSignInCodeResponse struct {
	Nonce string `json:"nonce"`
}

type MFASignInRequest struct {
	Type string `json:"type"`
	TOTP string `json:"totp"`
	Code string `json:"code"`
}

type TOTPRequest struct {
	TOTP string `json:"totp"`
}

type PasskeySignInRequest struct {
	Code                   string          `json:"code"`
	AuthenticationResponse json.RawMessage `json:"authentication_response"`
}

type PasskeyRegisterRequest struct {
	Code       string          `json:"code"`
	Credential json.RawMessage `json:"credential"`
}
