package auth

import "time"

// User represents a login identity. CreatedBy and UpdatedBy are weak
// references that become nil when the referenced user is deleted.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsSuperuser  bool      `json:"is_superuser"`
	IsActive     bool      `json:"-"`
	CreatedBy    *int64    `json:"created_by"`
	UpdatedBy    *int64    `json:"updated_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// APIToken represents an issued bearer token. Only the hash is persisted.
type APIToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"` // Never expose hash
	TokenPrefix string     `json:"token_prefix"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// AuthContext holds authenticated user information for one request
type AuthContext struct {
	User  *User
	Token *APIToken
}

// UserID returns the authenticated user id, or zero for anonymous requests
func (ac *AuthContext) UserID() int64 {
	if ac == nil || ac.User == nil {
		return 0
	}
	return ac.User.ID
}

// IsSuperuser reports whether the authenticated user is a superuser
func (ac *AuthContext) IsSuperuser() bool {
	return ac != nil && ac.User != nil && ac.User.IsSuperuser
}
