package types

import "fmt"

// Actor is the authenticated user on whose behalf a core operation runs.
// It is recorded on audits and as the task creator.
type Actor struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Ref is the string stored in created_by columns.
func (a Actor) Ref() string {
	if a.Email != "" {
		return a.Email
	}
	return fmt.Sprintf("user:%d", a.ID)
}

// System is the actor recorded for background work.
func System() Actor {
	return Actor{Email: "system"}
}
