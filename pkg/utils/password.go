package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a bcrypt hash; salt and cost ride inside the output
// so verification needs nothing but the hash itself.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword delegates the comparison to bcrypt, which is not vulnerable
// to timing on the candidate.
func CheckPassword(pw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}
