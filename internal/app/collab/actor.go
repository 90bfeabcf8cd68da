package collab

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the authenticated user performing an operation. Identity is
// established outside the engine.
type Actor struct {
	ID   primitive.ObjectID
	Name string
}

func (a Actor) validate() error {
	if a.ID.IsZero() {
		return forbidden("an authenticated user is required")
	}
	return nil
}

func (a Actor) displayName() string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	return a.ID.Hex()
}
