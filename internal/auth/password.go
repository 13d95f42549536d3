package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a salted bcrypt hash. Hashing the same plaintext twice
// yields different hashes; CheckPasswordHash matches either.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash reports whether password matches hash. A malformed hash is
// treated as a mismatch, never an error.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
