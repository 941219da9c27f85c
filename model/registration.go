package model

import (
	"fmt"
	"time"
)

// Field names, matching the JSON keys of RegistrationForm
const (
	FieldName       = "name"
	FieldEmail      = "email"
	FieldPhone      = "phone"
	FieldCollege    = "college"
	FieldDepartment = "department"
	FieldYear       = "year"
	FieldEvent      = "event"
	FieldTeamName   = "teamName"
	FieldTeamSize   = "teamSize"
	FieldExperience = "experience"
)

// Fields lists every form field in wizard order.
var Fields = []string{
	FieldName, FieldEmail, FieldPhone,
	FieldCollege, FieldDepartment, FieldYear,
	FieldEvent, FieldTeamName, FieldTeamSize, FieldExperience,
}

const DefaultTeamSize = "1"

// RegistrationForm is the draft a registrant builds across the wizard steps.
type RegistrationForm struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	College    string `json:"college"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Event      string `json:"event"`
	TeamName   string `json:"teamName"`
	TeamSize   string `json:"teamSize"`
	Experience string `json:"experience"`
}

// NewRegistrationForm returns an empty form with the default team size
func NewRegistrationForm() RegistrationForm {
	return RegistrationForm{TeamSize: DefaultTeamSize}
}

func (f *RegistrationForm) field(name string) (*string, error) {
	switch name {
	case FieldName:
		return &f.Name, nil
	case FieldEmail:
		return &f.Email, nil
	case FieldPhone:
		return &f.Phone, nil
	case FieldCollege:
		return &f.College, nil
	case FieldDepartment:
		return &f.Department, nil
	case FieldYear:
		return &f.Year, nil
	case FieldEvent:
		return &f.Event, nil
	case FieldTeamName:
		return &f.TeamName, nil
	case FieldTeamSize:
		return &f.TeamSize, nil
	case FieldExperience:
		return &f.Experience, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Get returns the value of the named field
func (f RegistrationForm) Get(name string) (string, error) {
	p, err := f.field(name)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// Set overwrites the named field
func (f *RegistrationForm) Set(name, value string) error {
	p, err := f.field(name)
	if err != nil {
		return err
	}
	*p = value
	return nil
}

// Step is one screen of the registration wizard.
type Step int

const (
	StepPersonal Step = iota
	StepAcademic
	StepEvent
	StepConfirm
)

const (
	FirstStep = StepPersonal
	LastStep  = StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepPersonal:
		return "Personal"
	case StepAcademic:
		return "Academic"
	case StepEvent:
		return "Event"
	case StepConfirm:
		return "Confirm"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// StepFields lists the fields collected on each step, in prompt order.
var StepFields = map[Step][]string{
	StepPersonal: {FieldName, FieldEmail, FieldPhone},
	StepAcademic: {FieldCollege, FieldDepartment, FieldYear},
	StepEvent:    {FieldEvent, FieldTeamName, FieldTeamSize, FieldExperience},
	StepConfirm:  nil,
}

// Delivery records which notifications went out for a registration.
type Delivery struct {
	RegistrantNotified bool   `json:"registrantNotified"`
	AdminNotified      bool   `json:"adminNotified"`
	Error              string `json:"error,omitempty"`
}

// Registration is an accepted form as kept by the registration store.
type Registration struct {
	ID        string           `json:"id"`
	Form      RegistrationForm `json:"form"`
	CreatedAt time.Time        `json:"createdAt"`
	Delivery  Delivery         `json:"delivery"`
}

type EventSummary struct {
	Event string `json:"event"`
	Count int    `json:"count"`
}
