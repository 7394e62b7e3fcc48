// Package policy holds the authorization decisions. They are pure
// functions so every mutation path shares the exact same rules.
package policy

import "github.com/google/uuid"

// CanModify allows an actor to mutate a resource it owns, or any resource
// when the actor is an admin. Used by the user and recipe mutation paths.
func CanModify(actorID, ownerID uuid.UUID, actorIsAdmin bool) bool {
	return actorID == ownerID || actorIsAdmin
}

// CanAdminister allows admin-only operations: category mutations and
// granting or revoking the admin role.
func CanAdminister(actorIsAdmin bool) bool {
	return actorIsAdmin
}
