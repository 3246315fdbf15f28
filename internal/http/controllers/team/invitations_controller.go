// Package team maneja las invitaciones a equipos.
package team

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/flows"
	"github.com/dropDatabas3/authcore/internal/http/dto"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/helpers"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/dropDatabas3/authcore/internal/verification"
)

type InvitationFlows interface {
	SendTeamInvitation(ctx context.Context, project *repository.Project, inviter *repository.User, teamID, recipient, callbackURL string) error
	AcceptTeamInvitation(ctx context.Context, req verification.Request[flows.NoBody]) error
	CheckTeamInvitation(ctx context.Context, req verification.Request[flows.NoBody]) error
	TeamInvitationDetails(ctx context.Context, req verification.Request[flows.NoBody]) (*flows.InvitationDetails, error)
	ListTeamInvitations(ctx context.Context, project *repository.Project, u *repository.User, teamID string) ([]flows.Invitation, error)
	RevokeTeamInvitation(ctx context.Context, project *repository.Project, u *repository.User, teamID, invitationID string) error
}

type InvitationsController struct {
	flows InvitationFlows
}

func NewInvitationsController(f InvitationFlows) *InvitationsController {
	return &InvitationsController{flows: f}
}

// Send maneja POST /api/v1/team-invitations/send-code (el invitante debe ser miembro).
func (c *InvitationsController) Send(w http.ResponseWriter, r *http.Request) {
	var req dto.SendTeamInvitationRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	err := c.flows.SendTeamInvitation(ctx, middlewares.GetProject(ctx), middlewares.GetUser(ctx), req.TeamID, req.Email, req.CallbackURL)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}

func (c *InvitationsController) Accept(w http.ResponseWriter, r *http.Request) {
	var req dto.CodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	if err := c.flows.AcceptTeamInvitation(r.Context(), helpers.CodeRequest(r, req.Code, flows.NoBody{})); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}

func (c *InvitationsController) CheckCode(w http.ResponseWriter, r *http.Request) {
	var req dto.CodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	if err := c.flows.CheckTeamInvitation(r.Context(), helpers.CodeRequest(r, req.Code, flows.NoBody{})); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]bool{"is_code_valid": true})
}

func (c *InvitationsController) Details(w http.ResponseWriter, r *http.Request) {
	var req dto.CodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	d, err := c.flows.TeamInvitationDetails(r.Context(), helpers.CodeRequest(r, req.Code, flows.NoBody{}))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, d)
}

// List maneja GET /api/v1/team-invitations?team_id=
func (c *InvitationsController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := c.flows.ListTeamInvitations(ctx, middlewares.GetProject(ctx), middlewares.GetUser(ctx), r.URL.Query().Get("team_id"))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	out := dto.TeamInvitationList{Items: make([]dto.TeamInvitation, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, dto.TeamInvitation{
			ID:             it.ID,
			TeamID:         it.TeamID,
			RecipientEmail: it.RecipientEmail,
			ExpiresAt:      it.ExpiresAt,
		})
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Revoke maneja DELETE /api/v1/team-invitations/{id}?team_id=
func (c *InvitationsController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := c.flows.RevokeTeamInvitation(ctx, middlewares.GetProject(ctx), middlewares.GetUser(ctx), r.URL.Query().Get("team_id"), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}
