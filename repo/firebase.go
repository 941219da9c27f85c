package repo

import (
	"context"
	"fmt"
	"sort"

	"Symposium/model"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

const registrationsPath = "registrations"

// FirebaseConnector stores registrations in the Firebase Realtime Database
type FirebaseConnector struct {
	app    *firebase.App
	client *db.Client
}

// firebaseRegistration is the stored shape; times are kept as unix millis so
// the console can order on them.
type firebaseRegistration struct {
	ID        string                 `json:"id"`
	Form      model.RegistrationForm `json:"form"`
	CreatedAt int64                  `json:"createdAt"`
	Delivery  model.Delivery         `json:"delivery"`
}

// NewFirebaseConnector creates a new Firebase connector
func NewFirebaseConnector(ctx context.Context, serviceAccountKeyPath string, databaseURL string) (*FirebaseConnector, error) {
	if serviceAccountKeyPath == "" {
		return nil, fmt.Errorf("firebase service account key path is required")
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("firebase database url is required")
	}
	opt := option.WithCredentialsFile(serviceAccountKeyPath)

	config := &firebase.Config{
		DatabaseURL: databaseURL,
	}
	app, err := firebase.NewApp(ctx, config, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	return &FirebaseConnector{
		app:    app,
		client: client,
	}, nil
}

// SaveRegistration writes the registration under its own id
func (fc *FirebaseConnector) SaveRegistration(ctx context.Context, r model.Registration) error {
	if r.ID == "" {
		return model.ErrRegistrationIDMissing
	}
	ref := fc.client.NewRef(registrationsPath).Child(r.ID)
	if err := ref.Set(ctx, toFirebase(r)); err != nil {
		return fmt.Errorf("error saving registration: %w", err)
	}
	return nil
}

// UpdateDelivery overwrites the delivery flags of an existing registration
func (fc *FirebaseConnector) UpdateDelivery(ctx context.Context, id string, d model.Delivery) error {
	if _, err := fc.GetRegistration(ctx, id); err != nil {
		return err
	}
	ref := fc.client.NewRef(registrationsPath).Child(id).Child("delivery")
	if err := ref.Set(ctx, d); err != nil {
		return fmt.Errorf("error updating delivery: %w", err)
	}
	return nil
}

// GetRegistration reads a registration by its id
func (fc *FirebaseConnector) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	if id == "" {
		return nil, model.ErrRegistrationIDMissing
	}
	ref := fc.client.NewRef(registrationsPath).Child(id)
	var stored *firebaseRegistration
	if err := ref.Get(ctx, &stored); err != nil {
		return nil, fmt.Errorf("error reading registration: %w", err)
	}
	if stored == nil {
		return nil, model.ErrRegistrationNotFound
	}
	r := fromFirebase(*stored)
	return &r, nil
}

// ListRegistrations lists all registrations, newest first
func (fc *FirebaseConnector) ListRegistrations(ctx context.Context) ([]model.Registration, error) {
	ref := fc.client.NewRef(registrationsPath)
	var stored map[string]firebaseRegistration
	if err := ref.Get(ctx, &stored); err != nil {
		return nil, fmt.Errorf("error listing registrations: %w", err)
	}

	list := make([]model.Registration, 0, len(stored))
	for key, s := range stored {
		if s.ID == "" {
			s.ID = key
		}
		list = append(list, fromFirebase(s))
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// SummarizeByEvent counts registrations per event
func (fc *FirebaseConnector) SummarizeByEvent(ctx context.Context) ([]model.EventSummary, error) {
	list, err := fc.ListRegistrations(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, r := range list {
		counts[r.Form.Event]++
	}
	return summarize(counts), nil
}

// Close is a no-op; the Firebase SDK keeps no connection to release
func (fc *FirebaseConnector) Close() error {
	return nil
}

func toFirebase(r model.Registration) firebaseRegistration {
	return firebaseRegistration{
		ID:        r.ID,
		Form:      r.Form,
		CreatedAt: r.CreatedAt.UTC().UnixMilli(),
		Delivery:  r.Delivery,
	}
}

func fromFirebase(s firebaseRegistration) model.Registration {
	return model.Registration{
		ID:        s.ID,
		Form:      s.Form,
		CreatedAt: unixMilli(s.CreatedAt),
		Delivery:  s.Delivery,
	}
}
