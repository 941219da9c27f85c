package repo

import (
	"context"
	"sort"
	"time"

	"Symposium/model"
)

// RegistrationStore keeps accepted registrations for the admin views.
// Implementations are safe for concurrent use.
type RegistrationStore interface {
	SaveRegistration(ctx context.Context, r model.Registration) error
	UpdateDelivery(ctx context.Context, id string, d model.Delivery) error
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	// ListRegistrations returns registrations newest first.
	ListRegistrations(ctx context.Context) ([]model.Registration, error)
	// SummarizeByEvent counts registrations per catalogue event, in catalogue order.
	SummarizeByEvent(ctx context.Context) ([]model.EventSummary, error)
	Close() error
}

// summarize folds per-event counts into catalogue order, keeping events with
// no registrations and appending any names outside the catalogue.
func summarize(counts map[string]int) []model.EventSummary {
	out := make([]model.EventSummary, 0, len(model.Events))
	seen := make(map[string]bool, len(model.Events))
	for _, e := range model.Events {
		out = append(out, model.EventSummary{Event: e.Name, Count: counts[e.Name]})
		seen[e.Name] = true
	}
	var extra []string
	for name := range counts {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, model.EventSummary{Event: name, Count: counts[name]})
	}
	return out
}

func unixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
