package domain

import "github.com/google/uuid"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID    uuid.UUID
	Email string
	Role  string
}

const RoleModerator = "moderator"

func (a Actor) IsModerator() bool { return a.Role == RoleModerator }

// CanManage reports whether a may change a resource owned by ownerID.
func (a Actor) CanManage(ownerID uuid.UUID) bool {
	return a.IsModerator() || (a.ID != uuid.Nil && a.ID == ownerID)
}
