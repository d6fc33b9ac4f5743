// Package password hashes and verifies user secrets with bcrypt.
package password

import "golang.org/x/crypto/bcrypt"

// Hash returns the bcrypt hash of plain.
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare returns nil when plain matches the hash.
func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
