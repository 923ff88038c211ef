package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a login password at the configured BCRYPT_COST.
// Registration and the hash-password command both go through it, so stored
// hashes and seeded admin rows share one cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// The comparison is constant time, so a wrong password and a malformed hash
// look the same to the caller.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
