package services

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

var alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// UserParams is the "user" object of create, login and update requests.
// Nil fields were absent from the request.
type UserParams struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// fieldRule describes the accepted shape of one string parameter.
type fieldRule struct {
	field    string
	optional bool
	min      int
	pattern  *regexp.Regexp
}

func (r fieldRule) check(v *string) *common.FieldError {
	if v == nil {
		if r.optional {
			return nil
		}
		return &common.FieldError{Field: r.field, Message: "is required"}
	}
	if utf8.RuneCountInString(*v) < r.min {
		return &common.FieldError{Field: r.field, Message: fmt.Sprintf("must be at least %d characters long", r.min)}
	}
	if r.pattern != nil && !r.pattern.MatchString(*v) {
		return &common.FieldError{Field: r.field, Message: "must contain only letters and digits"}
	}
	return nil
}

var (
	createRules = []fieldRule{
		{field: "user.username", min: 2},
		{field: "user.password", min: 4},
	}
	loginRules = []fieldRule{
		{field: "user.username", min: 2},
		{field: "user.password", min: 1},
	}
	updateRules = []fieldRule{
		{field: "user.username", optional: true, min: 2, pattern: alphanumeric},
		{field: "user.password", optional: true, min: 6},
	}
)

// validate applies rules to p and returns a validation error listing every
// offending field, or nil.
func validate(p UserParams, rules []fieldRule) error {
	values := []*string{p.Username, p.Password}

	var fields []common.FieldError
	for i, r := range rules {
		if fe := r.check(values[i]); fe != nil {
			fields = append(fields, *fe)
		}
	}
	if p.Password != nil && len(*p.Password) > maxPasswordBytes {
		fields = append(fields, common.FieldError{
			Field:   "user.password",
			Message: fmt.Sprintf("must be at most %d bytes long", maxPasswordBytes),
		})
	}

	if len(fields) == 0 {
		return nil
	}
	return common.NewDetailedError(common.ErrValidation, "Parameters validation error!", fields...)
}
