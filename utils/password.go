package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of the password using a cost that balances security and performance.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares the bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PasswordErrors returns baseline strength violations for a candidate
// password, in the order checked. Empty result means the password passes.
func PasswordErrors(password string) []string {
	var errs []string
	if len(password) < 8 {
		errs = append(errs, "This password is too short. It must contain at least 8 characters.")
	}
	numeric := len(password) > 0
	for _, r := range password {
		if r < '0' || r > '9' {
			numeric = false
			break
		}
	}
	if numeric {
		errs = append(errs, "This password is entirely numeric.")
	}
	return errs
}
