package model

import "time"

// User mirrors an identity-provider account. The ID is issued by the identity
// provider and is immutable; rows are upserted lazily on first authenticated
// request.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Username  string    `db:"username" json:"username"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
