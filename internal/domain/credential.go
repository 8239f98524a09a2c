package domain

// Credential is a registered login. Password holds whatever the configured
// password scheme stores: the plaintext password by default, a bcrypt hash
// when hashing is enabled.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
