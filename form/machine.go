package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"Symposium/model"
)

const DefaultSubmitTimeout = 20 * time.Second

const messageServerError = "Server error. Please try again."

// Submitter hands a finished form to the registration service.
// A service-reported failure is returned as *RejectedError.
type Submitter interface {
	Submit(ctx context.Context, f model.RegistrationForm) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, f model.RegistrationForm) error

func (fn SubmitterFunc) Submit(ctx context.Context, f model.RegistrationForm) error {
	return fn(ctx, f)
}

type State int

const (
	Idle State = iota
	Sending
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is the submission lifecycle; Reason is set only when Failed.
type Status struct {
	State  State
	Reason string
}

type Option func(*Machine)

// WithSubmitTimeout bounds how long Submit waits for the service.
func WithSubmitTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithListener(l Listener) Option {
	return func(m *Machine) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// Machine drives one registration attempt through the wizard steps.
// All methods are safe for concurrent use; transitions are serialized.
type Machine struct {
	mu        sync.Mutex
	submitter Submitter
	timeout   time.Duration
	listeners []Listener

	step    model.Step
	form    model.RegistrationForm
	errors  Errors
	touched map[string]bool
	status  Status
	banner  string
	closed  bool
}

// New returns a machine on the first step with an empty form.
func New(submitter Submitter, opts ...Option) *Machine {
	m := &Machine{
		submitter: submitter,
		timeout:   DefaultSubmitTimeout,
		step:      model.FirstStep,
		form:      model.NewRegistrationForm(),
		errors:    Errors{},
		touched:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a listener for events emitted after it is added.
func (m *Machine) Subscribe(l Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Advance validates the current step and moves to the next one if it passes.
// On failure every erroring field becomes touched and ErrStepInvalid is returned.
func (m *Machine) Advance() error {
	m.mu.Lock()
	if err := m.editableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}

	errs := ValidateStep(m.step, m.form)
	if len(errs) > 0 {
		for name := range errs {
			m.touched[name] = true
		}
		m.errors = errs
		ev := ValidationFailed{Step: m.step, Fields: errs.Fields()}
		m.unlockAndEmit(ev)
		return ErrStepInvalid
	}

	m.errors = Errors{}
	if m.step >= model.LastStep {
		m.mu.Unlock()
		return nil
	}
	from := m.step
	m.step++
	m.unlockAndEmit(StepChanged{From: from, To: m.step})
	return nil
}

// Retreat moves back one step without validating. It is a no-op on the first step.
func (m *Machine) Retreat() error {
	m.mu.Lock()
	if err := m.editableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.step <= model.FirstStep {
		m.mu.Unlock()
		return nil
	}

	from := m.step
	m.step--
	m.errors = Errors{}
	m.banner = ""
	if m.status.State == Failed {
		m.status = Status{State: Idle}
	}
	m.unlockAndEmit(StepChanged{From: from, To: m.step})
	return nil
}

// UpdateField sets a field. Once the field has been touched its error entry
// is kept in sync with the current step's rules; other entries are left alone.
func (m *Machine) UpdateField(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.editableLocked(); err != nil {
		return err
	}
	if err := m.form.Set(name, value); err != nil {
		return err
	}
	if m.touched[name] {
		m.revalidateLocked(name)
	}
	return nil
}

// TouchField marks a field as visited and revalidates it.
func (m *Machine) TouchField(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.editableLocked(); err != nil {
		return err
	}
	if _, err := m.form.Get(name); err != nil {
		return err
	}
	m.touched[name] = true
	m.revalidateLocked(name)
	return nil
}

// Submit sends the form to the service. Only one submission may be in flight;
// a call made while Sending returns ErrSubmissionInFlight without contacting
// the service. Success is terminal.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.status.State == Sending:
		m.mu.Unlock()
		return ErrSubmissionInFlight
	case m.status.State == Succeeded:
		m.mu.Unlock()
		return ErrAlreadySubmitted
	case m.step != model.StepConfirm:
		m.mu.Unlock()
		return ErrNotOnConfirm
	}
	m.status = Status{State: Sending}
	m.banner = ""
	snapshot := m.form
	m.unlockAndEmit(SubmissionStarted{})

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	// a submitter that ignores ctx still cannot hold the machine past the timeout
	result := make(chan error, 1)
	go func() { result <- m.submitter.Submit(ctx, snapshot) }()
	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if err == nil {
		m.status = Status{State: Succeeded}
		m.errors = Errors{}
		m.unlockAndEmit(SubmissionSucceeded{Form: snapshot})
		return nil
	}

	reason := failureReason(ctx, err)
	m.status = Status{State: Failed, Reason: reason}
	m.banner = reason
	m.unlockAndEmit(SubmissionFailed{Reason: reason})
	return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
}

// Close abandons the machine. A submission still in flight resolves as a no-op.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.listeners = nil
}

func (m *Machine) Step() model.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Form returns a copy of the current draft.
func (m *Machine) Form() model.RegistrationForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

// Errors returns a copy of the current error mapping.
func (m *Machine) Errors() Errors {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors.clone()
}

func (m *Machine) Touched(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touched[name]
}

// VisibleError returns the error for a field only once it has been touched.
func (m *Machine) VisibleError(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.touched[name] {
		return ""
	}
	return m.errors[name]
}

func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Banner is the submission error message shown on the confirm step.
func (m *Machine) Banner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.banner
}

func (m *Machine) editableLocked() error {
	switch {
	case m.closed:
		return ErrClosed
	case m.status.State == Sending:
		return ErrSubmissionInFlight
	case m.status.State == Succeeded:
		return ErrAlreadySubmitted
	}
	return nil
}

func (m *Machine) revalidateLocked(name string) {
	errs := ValidateStep(m.step, m.form)
	if msg, ok := errs[name]; ok {
		m.errors[name] = msg
		return
	}
	delete(m.errors, name)
}

// unlockAndEmit releases m.mu and then delivers ev to the listeners that were
// registered at the time of the transition.
func (m *Machine) unlockAndEmit(ev Event) {
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func failureReason(ctx context.Context, err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		if msg := strings.TrimSpace(rejected.Message); msg != "" {
			return msg
		}
		return messageServerError
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return MessageTimedOut
	}
	return MessageUnreachable
}
