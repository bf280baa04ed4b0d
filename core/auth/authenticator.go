package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown role or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator checks the credentials of a staff role.
type Authenticator interface {
	Authenticate(role, password string) error
}

// PasswordAuthenticator authenticates roles against a shared secret per role.
// Secrets are bcrypt hashes, or plaintext (DEV only). This is a UI gate, not a security boundary.
type PasswordAuthenticator struct {
	secrets map[string][]byte
}

var _ Authenticator = (*PasswordAuthenticator)(nil)

func NewPasswordAuthenticator(passwords map[string]string) *PasswordAuthenticator {
	secrets := make(map[string][]byte, len(passwords))
	for role, pwd := range passwords {
		if pwd != "" {
			secrets[strings.ToLower(role)] = []byte(pwd)
		}
	}
	return &PasswordAuthenticator{secrets: secrets}
}

func (pa *PasswordAuthenticator) Authenticate(role, password string) error {
	secret, ok := pa.secrets[strings.ToLower(role)]
	if !ok || password == "" {
		return ErrInvalidCredentials
	}
	if isBcryptHash(secret) {
		if err := bcrypt.CompareHashAndPassword(secret, []byte(password)); err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}
	if subtle.ConstantTimeCompare(secret, []byte(password)) == 0 {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns the bcrypt hash of pwd, for use as a role secret.
func HashPassword(pwd string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hashing password")
	}
	return string(hash), nil
}

func isBcryptHash(b []byte) bool {
	_, err := bcrypt.Cost(b)
	return err == nil
}
