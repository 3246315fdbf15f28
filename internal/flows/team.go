package flows

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/validation"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// InvitationData es el equipo al que invita el código.
type InvitationData struct {
	TeamID string `json:"team_id"`
}

func (d InvitationData) Validate() error {
	if d.TeamID == "" {
		return errors.New("team_id is required")
	}
	return nil
}

// InvitationDetails es lo que ve el invitado antes de aceptar.
type InvitationDetails struct {
	TeamID          string `json:"team_id"`
	TeamDisplayName string `json:"team_display_name"`
}

// Invitation es una invitación pendiente.
type Invitation struct {
	ID             string    `json:"id"`
	TeamID         string    `json:"team_id"`
	RecipientEmail string    `json:"recipient_email"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// memberOf exige que u sea miembro del equipo. Un equipo ajeno se reporta como inexistente.
func (s *Service) memberOf(ctx context.Context, project *repository.Project, u *repository.User, teamID string) (*repository.Team, error) {
	if u == nil {
		return nil, autherr.ErrUserAuthenticationRequired
	}
	team, err := s.deps.Store.Teams().GetByID(ctx, project.ID, teamID)
	if repository.IsNotFound(err) {
		return nil, autherr.ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.deps.Store.Teams().IsMember(ctx, project.ID, teamID, u.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, autherr.ErrTeamNotFound
	}
	return team, nil
}

// SendTeamInvitation invita recipient al equipo. El que invita tiene que ser miembro.
func (s *Service) SendTeamInvitation(ctx context.Context, project *repository.Project, inviter *repository.User, teamID, recipient, callbackURL string) error {
	team, err := s.memberOf(ctx, project, inviter, teamID)
	if err != nil {
		return err
	}
	addr := validation.NormalizeEmail(recipient)
	if !validation.ValidEmail(addr) {
		return autherr.SchemaError(errors.New("email is not valid"))
	}
	if callbackURL == "" {
		return autherr.SchemaError(errors.New("callback_url is required"))
	}
	code, _, err := s.invitation.SendCode(ctx, verification.CreateOptions[InvitationData, EmailMethod]{
		Project:     project,
		Method:      EmailMethod{Email: addr},
		Data:        InvitationData{TeamID: team.ID},
		CallbackURL: callbackURL,
	}, verification.SendOptions{User: inviter})
	if err != nil {
		return err
	}
	s.log(ctx, "SendTeamInvitation").Info("team invitation sent",
		logger.TenantID(project.ID), logger.String("team_id", team.ID), logger.CodeID(code.ID))
	return nil
}

func (s *Service) sendInvitation(ctx context.Context, code *verification.Code, opts verification.CreateOptions[InvitationData, EmailMethod], send verification.SendOptions) (verification.SendResult, error) {
	team, err := s.deps.Store.Teams().GetByID(ctx, opts.Project.ID, opts.Data.TeamID)
	if err != nil {
		return verification.SendResult{}, err
	}
	s.notify(ctx, opts.Project, opts.Method.Email, email.TemplateTeamInvitation, map[string]any{
		"team_display_name": team.DisplayName,
		"inviter":           displayName(send.User),
		"link":              code.Link,
	})
	return verification.SendResult{}, nil
}

// AcceptTeamInvitation suma al usuario autenticado de la request al equipo.
func (s *Service) AcceptTeamInvitation(ctx context.Context, req verification.Request[NoBody]) error {
	_, err := s.invitation.UseCode(ctx, req)
	return err
}

// CheckTeamInvitation valida el código sin consumirlo.
func (s *Service) CheckTeamInvitation(ctx context.Context, req verification.Request[NoBody]) error {
	return s.invitation.CheckCode(ctx, req)
}

// TeamInvitationDetails devuelve el equipo de la invitación sin consumirla.
func (s *Service) TeamInvitationDetails(ctx context.Context, req verification.Request[NoBody]) (*InvitationDetails, error) {
	v, err := s.invitation.GetDetails(ctx, req)
	if err != nil {
		return nil, err
	}
	return v.(*InvitationDetails), nil
}

func (s *Service) validateInvitation(_ context.Context, in verification.Input[InvitationData, EmailMethod, NoBody]) error {
	if in.User == nil {
		return autherr.ErrUserAuthenticationRequired
	}
	return nil
}

func (s *Service) consumeInvitation(ctx context.Context, in verification.Input[InvitationData, EmailMethod, NoBody]) (Success, error) {
	err := s.deps.Store.Teams().AddMember(ctx, in.Project.ID, in.Data.TeamID, in.User.ID)
	switch {
	case repository.IsNotFound(err):
		return Success{}, autherr.ErrTeamNotFound
	case repository.IsConflict(err):
		return Success{}, autherr.ErrTeamMembershipAlreadyExists
	case err != nil:
		return Success{}, err
	}
	s.log(ctx, "AcceptTeamInvitation").Info("team invitation accepted",
		logger.TenantID(in.Project.ID), logger.UserID(in.User.ID), logger.String("team_id", in.Data.TeamID))
	return Success{}, nil
}

func (s *Service) invitationDetails(ctx context.Context, in verification.Input[InvitationData, EmailMethod, NoBody]) (any, error) {
	team, err := s.deps.Store.Teams().GetByID(ctx, in.Project.ID, in.Data.TeamID)
	if repository.IsNotFound(err) {
		return nil, autherr.ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return &InvitationDetails{TeamID: team.ID, TeamDisplayName: team.DisplayName}, nil
}

// ListTeamInvitations lista las invitaciones pendientes del equipo.
func (s *Service) ListTeamInvitations(ctx context.Context, project *repository.Project, u *repository.User, teamID string) ([]Invitation, error) {
	if _, err := s.memberOf(ctx, project, u, teamID); err != nil {
		return nil, err
	}
	codes, err := s.invitation.ListCodes(ctx, project, func(d InvitationData) bool { return d.TeamID == teamID })
	if err != nil {
		return nil, err
	}
	out := make([]Invitation, 0, len(codes))
	for _, c := range codes {
		out = append(out, Invitation{ID: c.ID, TeamID: c.Data.TeamID, RecipientEmail: c.Method.Email, ExpiresAt: c.ExpiresAt})
	}
	return out, nil
}

// RevokeTeamInvitation revoca una invitación pendiente del equipo.
func (s *Service) RevokeTeamInvitation(ctx context.Context, project *repository.Project, u *repository.User, teamID, invitationID string) error {
	invs, err := s.ListTeamInvitations(ctx, project, u, teamID)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		if inv.ID == invitationID {
			return s.invitation.RevokeCode(ctx, project, invitationID)
		}
	}
	return autherr.ErrVerificationCodeNotFound
}
