package repository

import "context"

// Team es un equipo del proyecto; solo lo necesario para invitaciones.
type Team struct {
	ID          string
	TenantID    string
	DisplayName string
}

// TeamRepository es lo mínimo que necesita el flujo de invitaciones.
type TeamRepository interface {
	Create(ctx context.Context, t *Team) error
	GetByID(ctx context.Context, tenantID, id string) (*Team, error)
	// AddMember retorna ErrConflict si el usuario ya es miembro.
	AddMember(ctx context.Context, tenantID, teamID, userID string) error
	IsMember(ctx context.Context, tenantID, teamID, userID string) (bool, error)
}
