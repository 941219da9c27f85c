package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Symposium/model"

	"github.com/rs/zerolog/log"
)

// Alerter is a secondary admin channel. Its failures never fail a dispatch.
type Alerter interface {
	Alert(ctx context.Context, f model.RegistrationForm) error
}

// DispatchError reports which of the two emails could not be delivered.
// Either field may be nil when that message went out.
type DispatchError struct {
	RegistrantErr error
	AdminErr      error
}

func (e *DispatchError) Error() string {
	var parts []string
	if e.RegistrantErr != nil {
		parts = append(parts, fmt.Sprintf("registrant: %v", e.RegistrantErr))
	}
	if e.AdminErr != nil {
		parts = append(parts, fmt.Sprintf("admin: %v", e.AdminErr))
	}
	return "notification dispatch failed: " + strings.Join(parts, "; ")
}

func (e *DispatchError) Unwrap() []error {
	var errs []error
	for _, err := range []error{e.RegistrantErr, e.AdminErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Partial reports whether exactly one of the two emails was delivered.
func (e *DispatchError) Partial() bool {
	return (e.RegistrantErr == nil) != (e.AdminErr == nil)
}

// Dispatcher sends the registrant confirmation and the admin alert.
type Dispatcher struct {
	renderer   *Renderer
	mailer     Mailer
	adminEmail string
	alerters   []Alerter
}

func NewDispatcher(renderer *Renderer, mailer Mailer, adminEmail string, alerters ...Alerter) *Dispatcher {
	return &Dispatcher{
		renderer:   renderer,
		mailer:     mailer,
		adminEmail: adminEmail,
		alerters:   alerters,
	}
}

// Dispatch attempts both emails independently. Any failure is returned as
// *DispatchError even when the other email was delivered; there is no
// compensation for the message that did go out.
func (d *Dispatcher) Dispatch(ctx context.Context, f model.RegistrationForm) (model.Delivery, error) {
	var delivery model.Delivery
	dispatchErr := &DispatchError{}

	if msg, err := d.renderer.Registrant(f); err != nil {
		dispatchErr.RegistrantErr = err
	} else if err := d.mailer.Send(ctx, msg); err != nil {
		dispatchErr.RegistrantErr = err
	} else {
		delivery.RegistrantNotified = true
	}

	if msg, err := d.renderer.Admin(d.adminEmail, f); err != nil {
		dispatchErr.AdminErr = err
	} else if err := d.mailer.Send(ctx, msg); err != nil {
		dispatchErr.AdminErr = err
	} else {
		delivery.AdminNotified = true
	}

	for _, a := range d.alerters {
		if err := a.Alert(ctx, f); err != nil {
			log.Warn().Err(err).Str("email", f.Email).Msg("admin alert failed")
		}
	}

	if dispatchErr.RegistrantErr == nil && dispatchErr.AdminErr == nil {
		log.Info().
			Str("registrant", f.Email).
			Str("admin", d.adminEmail).
			Msg("emails sent")
		return delivery, nil
	}

	delivery.Error = dispatchErr.Error()
	if dispatchErr.Partial() {
		log.Warn().
			Bool("registrantNotified", delivery.RegistrantNotified).
			Bool("adminNotified", delivery.AdminNotified).
			Msg("partial notification failure reported as failure")
	}
	return delivery, dispatchErr
}

// IsDispatchError reports whether err came from a failed dispatch.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}
