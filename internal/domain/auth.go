package domain

// Voter roles carried in auth tokens
const (
	RoleVoter = "voter"
	RoleAdmin = "admin"
)

// AuthClaims is what the engine needs from the identity provider: a stable
// voter id and a role. Sign-up, verification and session handling live in
// the identity collaborator.
type AuthClaims struct {
	VoterID     string `json:"voter_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
}

// IsAdmin reports whether the claims grant admin transitions.
func (c *AuthClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
