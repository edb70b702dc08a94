package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// AdminCredentials is the single shared back-office identity. When a bcrypt
// hash is configured it takes precedence over the plaintext password.
type AdminCredentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// Check reports whether username and password match the configured pair.
func (c AdminCredentials) Check(username, password string) bool {
	if c.Username == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	passOK := c.CheckPassword(password)
	return userOK && passOK
}

// CheckPassword compares password alone. It backs the second factor required
// before deleting the whole catalog.
func (c AdminCredentials) CheckPassword(password string) bool {
	if password == "" {
		return false
	}
	if c.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	}
	if c.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
}
