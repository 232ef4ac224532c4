package security

import "golang.org/x/crypto/bcrypt"

// passwordCost is the bcrypt work factor for admin password hashes.
const passwordCost = 12

// HashPassword derives the bcrypt hash stored for an admin password.
func HashPassword(plain string) (string, error) {
	hashed, errHash := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if errHash != nil {
		return "", errHash
	}
	return string(hashed), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
