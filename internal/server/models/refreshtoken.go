package models

import "time"

// Revocation reasons recorded on RefreshToken.ReasonRevoked.
const (
	ReasonReplaced = "replaced by new token"
	ReasonReuse    = "attempted reuse of revoked ancestor token"
	ReasonLogout   = "revoked for logout"
)

// RefreshToken is one issued opaque refresh credential. Empty strings mean
// "unset" for RevokedByIP, ReasonRevoked and ReplacedByToken.
type RefreshToken struct {
	Token           string     `json:"token"`
	Created         time.Time  `json:"created"`
	Expires         time.Time  `json:"expires"`
	CreatedByIP     string     `json:"created_by_ip"`
	Revoked         *time.Time `json:"revoked,omitempty"`
	RevokedByIP     string     `json:"revoked_by_ip,omitempty"`
	ReasonRevoked   string     `json:"reason_revoked,omitempty"`
	ReplacedByToken string     `json:"replaced_by_token,omitempty"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.Expires)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.Revoked != nil
}

// IsActive reports whether t is neither expired nor revoked at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// Revoke stamps the revocation fields. replacedBy is empty unless t is
// being rotated.
func (t *RefreshToken) Revoke(now time.Time, ip, reason, replacedBy string) {
	t.Revoked = &now
	t.RevokedByIP = ip
	t.ReasonRevoked = reason
	t.ReplacedByToken = replacedBy
}

func (t *RefreshToken) Clone() *RefreshToken {
	c := *t
	if t.Revoked != nil {
		r := *t.Revoked
		c.Revoked = &r
	}
	return &c
}
