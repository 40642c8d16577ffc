package model

import "time"

// User is owned by the profile service; the core only reads it.
type User struct {
	ID          int64     `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"displayName"`
	PhotoRef    *string   `db:"photo_ref" json:"photoRef,omitempty"`
	Points      int       `db:"points" json:"points"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Profile is the minimal partner view sent on a match.
type Profile struct {
	ID          int64   `json:"id"`
	DisplayName string  `json:"displayName"`
	PhotoRef    *string `json:"photoRef,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		PhotoRef:    u.PhotoRef,
	}
}

// AuthSession is a bearer token issued by the identity service.
type AuthSession struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateUserParams struct {
	DisplayName string
	PhotoRef    *string
}
