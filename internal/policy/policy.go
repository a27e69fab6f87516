// Package policy holds the input-shape rules for credentials and profile
// fields. Every function is pure: no storage, no mail, no clock.
package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/security"
)

const MinPasswordLength = 8

var (
	validate = validator.New()

	phonePattern   = regexp.MustCompile(`^\d{11}$`)
	digitsOnly     = regexp.MustCompile(`^\d+(\.\d+)?$`)
	badNameChars   = regexp.MustCompile("[+/*$^()\\[\\]{}\\\\|~`&!@#%_=:;\"'<>,.?]|(^-)|(-$)|(-{2,})")
	deniedPassword = map[string]struct{}{
		"password":     {},
		"pass":         {},
		"pass123":      {},
		"pass1234":     {},
		"password123":  {},
		"password1234": {},
		"test":         {},
		"test1234":     {},
		"admin":        {},
		"admin123":     {},
		"admin1234":    {},
		"root":         {},
		"toor":         {},
	}
)

// Violations maps a request field to the human-readable problems found in it.
// An empty value means the input is valid.
type Violations map[string][]string

func (v Violations) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v Violations) merge(field string, msgs []string) {
	if len(msgs) > 0 {
		v[field] = append(v[field], msgs...)
	}
}

func (v Violations) Empty() bool {
	return len(v) == 0
}

// Err returns v as an error, or nil when there is nothing to report.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v Violations) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v[f], "; "))
	}
	return "validation failed: " + strings.Join(parts, " | ")
}

// Email checks presence and address grammar.
func Email(email string) []string {
	var errs []string

	if strings.TrimSpace(email) == "" {
		return append(errs, "email field cannot be empty.")
	}
	if validate.Var(strings.TrimSpace(email), "email") != nil {
		errs = append(errs, "Invalid email address.")
	}
	return errs
}

// Password checks strength. confirm is compared only when non-nil.
func Password(password string, confirm *string, field string) []string {
	var errs []string

	if strings.TrimSpace(password) == "" {
		errs = append(errs, field+" field cannot be empty.")
	} else {
		if !containsDigit(password) {
			errs = append(errs, field+" value must contain letters and numbers.")
		}
		if len(strings.TrimSpace(password)) < MinPasswordLength {
			errs = append(errs, fmt.Sprintf("%s field must contain %d characters or more.", field, MinPasswordLength))
		}
		if len(password) > security.MaxPasswordBytes {
			errs = append(errs, fmt.Sprintf("%s field must not exceed %d bytes.", field, security.MaxPasswordBytes))
		}
		if _, denied := deniedPassword[strings.ToLower(password)]; denied {
			errs = append(errs, fmt.Sprintf("%s field cannot contain the value '%s'.", field, password))
		}
	}

	if confirm != nil && *confirm != password {
		errs = append(errs, field+" and its confirmation must match.")
	}
	return errs
}

// Name checks a first_name / last_name style field.
func Name(name, field string) []string {
	var errs []string

	if strings.TrimSpace(name) == "" {
		return append(errs, field+" field cannot be empty.")
	}
	if containsDigit(name) {
		errs = append(errs, field+" field cannot contain numbers.")
	}
	if badNameChars.MatchString(name) {
		errs = append(errs, field+" field must not include invalid characters.")
	}
	return errs
}

// Address is required for agents and may never be only digits.
func Address(address *string, role user.Role) []string {
	var errs []string

	if role == user.RoleAgent && isBlank(address) {
		errs = append(errs, "address field is required for agent roles.")
	}
	if !isBlank(address) && digitsOnly.MatchString(strings.TrimSpace(*address)) {
		errs = append(errs, "address field cannot contain only numbers.")
	}
	return errs
}

// PhoneNumber is required for agents and must be exactly 11 digits when given.
func PhoneNumber(phone *string, role user.Role) []string {
	var errs []string

	if role == user.RoleAgent && isBlank(phone) {
		errs = append(errs, "phone_number field is required for agent roles.")
	}
	if !isBlank(phone) && !phonePattern.MatchString(*phone) {
		errs = append(errs, "phone_number field must be a valid 11 digits phone number.")
	}
	return errs
}

// Role resolves the requested role. Empty means user; anything other than
// user or agent is coerced to user and reported.
func Role(raw string) (user.Role, []string) {
	switch user.Role(raw) {
	case "":
		return user.RoleUser, nil
	case user.RoleUser, user.RoleAgent:
		return user.Role(raw), nil
	default:
		return user.RoleUser, []string{"role field must be either 'user' or 'agent'."}
	}
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
