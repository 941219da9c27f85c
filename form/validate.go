package form

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"Symposium/model"
)

const minNameLength = 3

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	spaces       = regexp.MustCompile(`\s+`)
)

// Errors maps a field name to the message describing why it is invalid.
// A field is present only while it fails validation.
type Errors map[string]string

// Fields returns the failing field names in sorted order.
func (e Errors) Fields() []string {
	return slices.Sorted(maps.Keys(e))
}

func (e Errors) Equal(other Errors) bool {
	return maps.Equal(e, other)
}

func (e Errors) clone() Errors {
	out := make(Errors, len(e))
	maps.Copy(out, e)
	return out
}

// ValidateStep checks the fields gated by step and returns the ones that fail.
// It has no side effects; an empty result means the step may be passed.
func ValidateStep(step model.Step, f model.RegistrationForm) Errors {
	errs := Errors{}
	switch step {
	case model.StepPersonal:
		validatePersonal(f, errs)
	case model.StepAcademic:
		validateAcademic(f, errs)
	case model.StepEvent:
		validateEvent(f, errs)
	}
	return errs
}

// ValidateSubmission checks a payload arriving at the registration service.
// Only name, email, phone and event are required; academic and team fields are
// checked against their rules when present.
func ValidateSubmission(f model.RegistrationForm) Errors {
	errs := Errors{}
	validatePersonal(f, errs)
	validateEvent(f, errs)
	if f.Department != "" && !model.IsDepartment(f.Department) {
		errs[model.FieldDepartment] = "Please select your department."
	}
	if f.Year != "" && !model.IsYear(f.Year) {
		errs[model.FieldYear] = "Please select your year of study."
	}
	return errs
}

func validatePersonal(f model.RegistrationForm, errs Errors) {
	name := strings.TrimSpace(f.Name)
	switch {
	case name == "":
		errs[model.FieldName] = "Full name is required."
	case utf8.RuneCountInString(name) < minNameLength:
		errs[model.FieldName] = "Name must be at least 3 characters."
	}

	switch {
	case strings.TrimSpace(f.Email) == "":
		errs[model.FieldEmail] = "Email address is required."
	case !emailPattern.MatchString(f.Email):
		errs[model.FieldEmail] = "Enter a valid email (e.g. you@gmail.com)."
	}

	switch {
	case strings.TrimSpace(f.Phone) == "":
		errs[model.FieldPhone] = "Phone number is required."
	case !phonePattern.MatchString(spaces.ReplaceAllString(f.Phone, "")):
		errs[model.FieldPhone] = "Enter a valid 10-digit Indian mobile number."
	}
}

func validateAcademic(f model.RegistrationForm, errs Errors) {
	if strings.TrimSpace(f.College) == "" {
		errs[model.FieldCollege] = "College name is required."
	}
	if !model.IsDepartment(f.Department) {
		errs[model.FieldDepartment] = "Please select your department."
	}
	if !model.IsYear(f.Year) {
		errs[model.FieldYear] = "Please select your year of study."
	}
}

func validateEvent(f model.RegistrationForm, errs Errors) {
	if !model.IsEvent(f.Event) {
		errs[model.FieldEvent] = "Please select an event to register for."
	}
	// optional; an empty size falls back to the default on submission
	if f.TeamSize != "" && !model.IsTeamSize(f.TeamSize) {
		errs[model.FieldTeamSize] = "Team size must be between 1 and 5."
	}
}
