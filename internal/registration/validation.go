package registration

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	FieldUsername  = "username"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
	FieldPassword  = "password"

	UsernameMinLength = 8
)

// RequiredFields lists the fields every registration must carry, in the
// order their violations are reported.
var RequiredFields = []string{FieldUsername, FieldFirstName, FieldLastName, FieldEmail, FieldPassword}

var emailPattern = regexp.MustCompile(`^[a-zA-Z\d._+-]+@([a-z\d-]+\.?[a-z\d-]+)+\.[a-z]{2,4}$`)

// Violation is a single failed rule. It serializes as {"<field>": "<message>"}.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{v.Field: v.Message})
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Validate checks fields against the registration rules and returns every
// violation found; nil means the submission is acceptable. A field that is
// absent or blank counts as missing.
func Validate(fields map[string]string) []Violation {
	var violations []Violation

	for _, name := range RequiredFields {
		if !present(fields, name) {
			violations = append(violations, Violation{Field: name, Message: "this field is required"})
		}
	}

	if present(fields, FieldEmail) && !ValidEmail(fields[FieldEmail]) {
		violations = append(violations, Violation{Field: FieldEmail, Message: "invalid email address"})
	}

	if present(fields, FieldUsername) && utf8.RuneCountInString(fields[FieldUsername]) < UsernameMinLength {
		violations = append(violations, Violation{
			Field:   FieldUsername,
			Message: fmt.Sprintf("minlength %d characters", UsernameMinLength),
		})
	}

	return violations
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func present(fields map[string]string, name string) bool {
	v, ok := fields[name]
	return ok && strings.TrimSpace(v) != ""
}
