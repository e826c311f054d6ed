// Package models defines the server-side data models persisted by the
// credential stores.
package models

import "time"

// User is the identity root. It exclusively owns its refresh-token chain,
// kept in issuance order.
type User struct {
	ID            string          `json:"id"`
	UserName      string          `json:"username"`
	PasswordHash  string          `json:"password_hash"`
	Role          string          `json:"role"`
	CreatedAt     time.Time       `json:"created_at"`
	Version       int64           `json:"version"`
	RefreshTokens []*RefreshToken `json:"refresh_tokens"`
}

// FindToken returns the token in u's chain whose value equals token, or nil.
func (u *User) FindToken(token string) *RefreshToken {
	for _, t := range u.RefreshTokens {
		if t.Token == token {
			return t
		}
	}
	return nil
}

// Clone returns a deep copy of u, including its token chain.
func (u *User) Clone() *User {
	c := *u
	c.RefreshTokens = make([]*RefreshToken, len(u.RefreshTokens))
	for i, t := range u.RefreshTokens {
		c.RefreshTokens[i] = t.Clone()
	}
	return &c
}
