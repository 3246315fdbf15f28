package dto

import "time"

type SendVerificationCodeRequest struct {
	CallbackURL string `json:"callback_url"`
}

type SendTeamInvitationRequest struct {
	TeamID      string `json:"team_id"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
}

type TeamInvitation struct {
	ID             string    `json:"id"`
	TeamID         string    `json:"team_id"`
	RecipientEmail string    `json:"recipient_email"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type TeamInvitationList struct {
	Items []TeamInvitation `json:"items"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

type ProviderAccessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
