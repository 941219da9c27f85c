// Package service accepts finished registrations and triggers their notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"Symposium/form"
	"Symposium/model"
	"Symposium/notify"
	"Symposium/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Messages returned to the client. They are shown to registrants as-is.
const (
	MessageSent           = "Emails sent successfully."
	MessageMissingFields  = "Missing required fields."
	MessageStoreFailed    = "Failed to record registration. Please try again."
	MessageDispatchFailed = "Failed to send email. Please try again."
	MessageServerError    = "Server error. Please try again."
)

const deliveryWriteTimeout = 5 * time.Second

// dispatchMargin separates the dispatch deadline from the caller's submit
// timeout, so a slow send fails on the server before the caller stops waiting.
const dispatchMargin = 5 * time.Second

// DispatchBudget returns the dispatch deadline for callers that wait at most
// submitTimeout for Register. It is always shorter than submitTimeout.
func DispatchBudget(submitTimeout time.Duration) time.Duration {
	if submitTimeout > 2*dispatchMargin {
		return submitTimeout - dispatchMargin
	}
	return submitTimeout / 2
}

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrStore         = errors.New("registration store failed")
)

// InvalidError is returned when a payload passes the presence guard but
// fails the wizard's own field rules.
type InvalidError struct {
	Errors form.Errors
}

func (e *InvalidError) Error() string {
	for _, name := range model.Fields {
		if msg, ok := e.Errors[name]; ok {
			return "Invalid registration: " + msg
		}
	}
	return "Invalid registration."
}

// Dispatcher sends the registrant and admin notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, f model.RegistrationForm) (model.Delivery, error)
}

type Registrar struct {
	dispatcher      Dispatcher
	store           repo.RegistrationStore
	dispatchTimeout time.Duration
	now             func() time.Time
	newID           func() string
}

type Option func(*Registrar)

// WithDispatchTimeout bounds how long notifications may take. Keep it below
// the submit timeout of every caller, see DispatchBudget.
func WithDispatchTimeout(d time.Duration) Option {
	return func(r *Registrar) {
		if d > 0 {
			r.dispatchTimeout = d
		}
	}
}

// NewRegistrar builds the submission service. store may be nil, in which
// case registrations are only mailed out.
func NewRegistrar(dispatcher Dispatcher, store repo.RegistrationStore, opts ...Option) *Registrar {
	r := &Registrar{
		dispatcher:      dispatcher,
		store:           store,
		dispatchTimeout: DispatchBudget(form.DefaultSubmitTimeout),
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store exposes the configured store, or nil.
func (r *Registrar) Store() repo.RegistrationStore {
	return r.store
}

// Register validates f, records it, and dispatches both notifications.
// Nothing is sent when the registration could not be recorded.
func (r *Registrar) Register(ctx context.Context, f model.RegistrationForm) (*model.Registration, error) {
	f = normalize(f)
	if f.Name == "" || f.Email == "" || f.Phone == "" || f.Event == "" {
		return nil, ErrMissingFields
	}
	if errs := form.ValidateSubmission(f); len(errs) > 0 {
		return nil, &InvalidError{Errors: errs}
	}

	reg := &model.Registration{
		ID:        r.newID(),
		Form:      f,
		CreatedAt: r.now().UTC(),
	}
	logger := log.With().Str("registration", reg.ID).Str("event", f.Event).Logger()

	if r.store != nil {
		if err := r.store.SaveRegistration(ctx, *reg); err != nil {
			logger.Error().Err(err).Msg("error saving registration")
			return nil, fmt.Errorf("%w: %w", ErrStore, err)
		}
	}

	// dispatch outlives the request context
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.dispatchTimeout)
	defer cancel()
	delivery, dispatchErr := r.dispatcher.Dispatch(dctx, f)
	reg.Delivery = delivery

	if r.store != nil {
		// dctx may already be spent when the dispatch ran out of budget
		wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryWriteTimeout)
		err := r.store.UpdateDelivery(wctx, reg.ID, delivery)
		wcancel()
		if err != nil {
			logger.Error().Err(err).Msg("error recording delivery")
		}
	}
	if dispatchErr != nil {
		logger.Error().Err(dispatchErr).Msg("email error")
		return reg, dispatchErr
	}
	logger.Info().Str("email", f.Email).Msg("registration accepted")
	return reg, nil
}

// Submit lets in-process front ends use the registrar as a form.Submitter.
func (r *Registrar) Submit(ctx context.Context, f model.RegistrationForm) error {
	if _, err := r.Register(ctx, f); err != nil {
		status, msg := Outcome(err)
		return &form.RejectedError{Status: status, Message: msg}
	}
	return nil
}

// Outcome maps a Register error to the HTTP status and client message.
func Outcome(err error) (int, string) {
	var invalid *InvalidError
	switch {
	case err == nil:
		return http.StatusOK, MessageSent
	case errors.Is(err, ErrMissingFields):
		return http.StatusBadRequest, MessageMissingFields
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Error()
	case errors.Is(err, ErrStore):
		return http.StatusInternalServerError, MessageStoreFailed
	case notify.IsDispatchError(err):
		return http.StatusInternalServerError, MessageDispatchFailed
	}
	return http.StatusInternalServerError, MessageServerError
}

func normalize(f model.RegistrationForm) model.RegistrationForm {
	for _, name := range model.Fields {
		v, _ := f.Get(name)
		_ = f.Set(name, strings.TrimSpace(v))
	}
	if f.TeamSize == "" {
		f.TeamSize = model.DefaultTeamSize
	}
	return f
}
