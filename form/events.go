package form

import "Symposium/model"

// Event is emitted by a Machine after a transition has been committed.
// Presentation layers subscribe to these instead of inspecting machine state.
type Event interface {
	Name() string
}

// ValidationFailed is emitted when an advance attempt is blocked.
type ValidationFailed struct {
	Step   model.Step
	Fields []string
}

type StepChanged struct {
	From model.Step
	To   model.Step
}

type SubmissionStarted struct{}

type SubmissionSucceeded struct {
	Form model.RegistrationForm
}

type SubmissionFailed struct {
	Reason string
}

func (ValidationFailed) Name() string    { return "ValidationFailed" }
func (StepChanged) Name() string         { return "StepChanged" }
func (SubmissionStarted) Name() string   { return "SubmissionStarted" }
func (SubmissionSucceeded) Name() string { return "SubmissionSucceeded" }
func (SubmissionFailed) Name() string    { return "SubmissionFailed" }

// Listener receives machine events synchronously, outside the machine lock.
type Listener func(Event)
