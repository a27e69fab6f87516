package policy

import (
	"strings"

	"github.com/geocoder89/propertypro/internal/domain/user"
)

type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	PhoneNumber     *string
	Address         *string
	Role            string
}

// SignUp is the validated, normalised form of a SignUpInput.
type SignUp struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber *string
	Address     *string
	Role        user.Role
}

// ValidateSignUp reports every violation at once. The returned SignUp is
// only meaningful when the violations are empty.
func ValidateSignUp(in SignUpInput) (SignUp, Violations) {
	v := Violations{}

	role, roleErrs := Role(in.Role)

	v.merge("email", Email(in.Email))
	v.merge("password", Password(in.Password, &in.ConfirmPassword, "password"))
	v.merge("first_name", Name(in.FirstName, "first_name"))
	v.merge("last_name", Name(in.LastName, "last_name"))
	v.merge("address", Address(in.Address, role))
	v.merge("phone_number", PhoneNumber(in.PhoneNumber, role))
	v.merge("role", roleErrs)

	return SignUp{
		Email:       user.NormalizeEmail(in.Email),
		Password:    in.Password,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		PhoneNumber: trimmed(in.PhoneNumber),
		Address:     trimmed(in.Address),
		Role:        role,
	}, v
}

// ValidateSignIn only checks presence and email grammar. Strength rules are
// not applied at login so that an existing weak password can still be used.
func ValidateSignIn(email, password string) Violations {
	v := Violations{}

	v.merge("email", Email(email))
	if password == "" {
		v.Add("password", "password field cannot be empty.")
	}
	return v
}

func ValidateEmailOnly(email string) Violations {
	v := Violations{}
	v.merge("email", Email(email))
	return v
}

func ValidatePasswordReset(password, confirm string) Violations {
	v := Violations{}
	v.merge("password", Password(password, &confirm, "password"))
	return v
}

func ValidatePasswordChange(oldPassword, newPassword, confirm string) Violations {
	v := Violations{}

	if oldPassword == "" {
		v.Add("old_password", "old_password field cannot be empty.")
	}
	v.merge("new_password", Password(newPassword, &confirm, "new_password"))
	if oldPassword != "" && oldPassword == newPassword {
		v.Add("new_password", "new_password must differ from old_password.")
	}
	return v
}

func trimmed(s *string) *string {
	if isBlank(s) {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
