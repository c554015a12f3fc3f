package workflow

import (
	"satriarisk/backend/internal/models"

	"github.com/google/uuid"
)

// Actor is the caller identity every mutating operation is checked against:
// a user id, a work-unit affiliation and a role set.
type Actor struct {
	UserID     uuid.UUID
	WorkUnitID uuid.UUID
	Roles      models.RoleList
}

// IsOwner reports whether the actor is the owner of a record.
func (a Actor) IsOwner(ownerID uuid.UUID) bool {
	return a.UserID == ownerID
}

// HasRole reports whether the actor holds any of the given roles.
func (a Actor) HasRole(roles ...models.UserRole) bool {
	for _, r := range roles {
		if a.Roles.Has(r) {
			return true
		}
	}
	return false
}

// IsReviewer reports whether the actor holds the central reviewing role.
// Admins review everywhere.
func (a Actor) IsReviewer() bool {
	return a.HasRole(models.RoleRiskCommittee, models.RoleAdmin)
}

// InUnit reports whether the actor belongs to the given work unit.
func (a Actor) InUnit(unitID uuid.UUID) bool {
	return a.WorkUnitID == unitID
}
