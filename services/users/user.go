// Package users is the validated-RPC + repository + cache example service
// (spec §8 scenario 2): CreateUser validates its payload before the
// handler runs, persists through pkg/repository, and GetUser is served
// through a pkg/cache.Cache[T] read-through layer.
package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/relay/pkg/repository"
)

// User is the persisted entity. It implements repository.Entity so
// pkg/repository.Repository[User] can assign ID/timestamps on Create.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) GetID() string { return u.ID }
func (u *User) SetID(id string) { u.ID = id }
func (u *User) SetTimestamps(createdAt, updatedAt time.Time) {
	u.CreatedAt = createdAt
	u.UpdatedAt = updatedAt
}

var userColumns = []string{"id", "name", "email", "created_at", "updated_at"}

func scanUser(row repository.Scanner) (*User, error) {
	var u User
	var id uuid.UUID
	if err := row.Scan(&id, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ID = id.String()
	return &u, nil
}

func userValues(u *User) []any {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		id = uuid.New()
		u.ID = id.String()
	}
	return []any{id, u.Name, u.Email, u.CreatedAt, u.UpdatedAt}
}

func newUserID() string { return uuid.NewString() }
