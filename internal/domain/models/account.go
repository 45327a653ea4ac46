// internal/domain/models/account.go
package models

import "time"

// Account holds sign-in credentials. Its ID is the uid shared with the User profile.
type Account struct {
	ID                string     `bson:"_id" json:"id"`
	Email             *string    `bson:"email,omitempty" json:"email,omitempty"` // folded; nil for anonymous accounts
	PasswordHash      string     `bson:"password_hash,omitempty" json:"-"`
	AuthMethod        string     `bson:"auth_method" json:"auth_method"`
	Anonymous         bool       `bson:"anonymous" json:"anonymous"`
	PasswordChangedAt time.Time  `bson:"password_changed_at" json:"-"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	LastLoginAt       *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}
