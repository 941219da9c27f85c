package handler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"Symposium/form"
	"Symposium/model"
	"Symposium/repo"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
}

func (r *recordingSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, params)
	return &models.Message{}, nil
}

func (r *recordingSender) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("no message sent")
	}
	return r.sent[len(r.sent)-1].Text
}

func textUpdate(chatID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{Chat: models.Chat{ID: chatID}, Text: text}}
}

type capturingSubmitter struct {
	mu    sync.Mutex
	forms []model.RegistrationForm
	err   error
}

func (c *capturingSubmitter) Submit(_ context.Context, f model.RegistrationForm) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forms = append(c.forms, f)
	return c.err
}

// say sends text and returns the bot's reply.
func say(t *testing.T, p *RegistrationBot, s *recordingSender, text string) string {
	t.Helper()
	p.handle(context.Background(), s, textUpdate(42, text))
	return s.last(t)
}

func expectContains(t *testing.T, reply string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(reply, w) {
			t.Fatalf("reply %q does not contain %q", reply, w)
		}
	}
}

func fillToConfirm(t *testing.T, p *RegistrationBot, s *recordingSender) {
	t.Helper()
	expectContains(t, say(t, p, s, "/register"), "full name")
	expectContains(t, say(t, p, s, "Asha Rao"), "email")
	expectContains(t, say(t, p, s, "asha@college.edu"), "mobile")
	expectContains(t, say(t, p, s, "9876543210"), "Step 2 of 4", "college")
	expectContains(t, say(t, p, s, "Adithya Institute of Technology"), "department", "1. Computer Science & Engineering")
	expectContains(t, say(t, p, s, "1"), "year of study")
	expectContains(t, say(t, p, s, "3"), "Step 3 of 4", "event")
	expectContains(t, say(t, p, s, "2"), "team name")
	expectContains(t, say(t, p, s, "/skip"), "How many members")
	expectContains(t, say(t, p, s, "/skip"), "prior experience")
	expectContains(t, say(t, p, s, "/skip"), "Step 4 of 4", "Name: Asha Rao", "Event: 24-Hour National Hackathon", "/submit")
}

func TestRegistrationBotHappyPath(t *testing.T) {
	sub := &capturingSubmitter{}
	p := NewRegistrationBot(sub, time.Second)
	s := &recordingSender{}

	fillToConfirm(t, p, s)
	expectContains(t, say(t, p, s, "/submit"), "Sending your registration", "Registration complete", "asha@college.edu")

	if len(sub.forms) != 1 {
		t.Fatalf("expected one submission, got %d", len(sub.forms))
	}
	got := sub.forms[0]
	want := model.RegistrationForm{
		Name:       "Asha Rao",
		Email:      "asha@college.edu",
		Phone:      "9876543210",
		College:    "Adithya Institute of Technology",
		Department: "Computer Science & Engineering",
		Year:       "3rd Year",
		Event:      "24-Hour National Hackathon",
		TeamSize:   "1",
	}
	if got != want {
		t.Fatalf("unexpected form\n got %+v\nwant %+v", got, want)
	}
	if liveSession(p, 42) != nil {
		t.Fatal("session should be dropped after success")
	}
	expectContains(t, say(t, p, s, "/submit"), "didn't understand")
}

func TestRegistrationBotValidation(t *testing.T) {
	p := NewRegistrationBot(&capturingSubmitter{}, time.Second)
	s := &recordingSender{}

	say(t, p, s, "/register")
	expectContains(t, say(t, p, s, "/skip"), "required", "full name")
	expectContains(t, say(t, p, s, "As"), "Name must be at least 3 characters.", "full name")
	say(t, p, s, "Asha Rao")
	expectContains(t, say(t, p, s, "asha@"), "Enter a valid email (e.g. you@gmail.com).")
	say(t, p, s, "asha@college.edu")
	expectContains(t, say(t, p, s, "12345"), "Enter a valid 10-digit Indian mobile number.", "mobile")
	say(t, p, s, "98765 43210")
	expectContains(t, say(t, p, s, "AIT"), "department")
	expectContains(t, say(t, p, s, "Astronomy"), "Please select your department.")
	expectContains(t, say(t, p, s, "other"), "year of study")
	expectContains(t, say(t, p, s, "9"), "Please select your year of study.")
}

func TestRegistrationBotBack(t *testing.T) {
	p := NewRegistrationBot(&capturingSubmitter{}, time.Second)
	s := &recordingSender{}

	say(t, p, s, "/register")
	expectContains(t, say(t, p, s, "/back"), "full name")
	say(t, p, s, "Asha Rao")
	say(t, p, s, "asha@college.edu")
	say(t, p, s, "9876543210")
	expectContains(t, say(t, p, s, "/back"), "Step 1 of 4", "full name")
	expectContains(t, say(t, p, s, "Asha R"), "email")
}

func TestRegistrationBotSubmitFailure(t *testing.T) {
	sub := &capturingSubmitter{err: &form.RejectedError{Status: 500, Message: "Failed to send email. Please try again."}}
	p := NewRegistrationBot(sub, time.Second)
	s := &recordingSender{}

	fillToConfirm(t, p, s)
	expectContains(t, say(t, p, s, "/submit"), "Failed to send email. Please try again.", "/submit to try again")
	if liveSession(p, 42) == nil {
		t.Fatal("session must survive a failed submission")
	}

	sub.mu.Lock()
	sub.err = nil
	sub.mu.Unlock()
	expectContains(t, say(t, p, s, "/submit"), "Registration complete")
	if len(sub.forms) != 2 {
		t.Fatalf("expected two attempts, got %d", len(sub.forms))
	}
}

func TestRegistrationBotSubmitTooEarly(t *testing.T) {
	sub := &capturingSubmitter{}
	p := NewRegistrationBot(sub, time.Second)
	s := &recordingSender{}

	say(t, p, s, "/register")
	expectContains(t, say(t, p, s, "/submit"), "every step", "full name")
	if len(sub.forms) != 0 {
		t.Fatal("submitter must not be called before confirm")
	}
}

func TestRegistrationBotCommands(t *testing.T) {
	p := NewRegistrationBot(&capturingSubmitter{}, time.Second)
	s := &recordingSender{}

	expectContains(t, say(t, p, s, "hello"), "didn't understand")
	expectContains(t, say(t, p, s, "/help"), "/register", "/cancel")
	expectContains(t, say(t, p, s, "/events"), "Robotics Challenge", "Tech Lab")
	expectContains(t, say(t, p, s, "/cancel"), "no registration in progress")
	say(t, p, s, "/register")
	expectContains(t, say(t, p, s, "/cancel"), "cancelled")
	if liveSession(p, 42) != nil {
		t.Fatal("session should be gone after /cancel")
	}
}

func TestRegistrationBotRestartClosesOldSession(t *testing.T) {
	p := NewRegistrationBot(&capturingSubmitter{}, time.Second)
	s := &recordingSender{}

	say(t, p, s, "/register")
	old := liveSession(p, 42)
	say(t, p, s, "/register")
	if liveSession(p, 42) == old {
		t.Fatal("expected a fresh session")
	}
	if err := old.machine.Advance(); !errors.Is(err, form.ErrClosed) {
		t.Fatalf("old machine should be closed, got %v", err)
	}
}

// liveSession reads the session map without refreshing or expiring anything.
func liveSession(p *RegistrationBot, chatID int64) *chatSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[chatID]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestRegistrationBotExpiresIdleSessions(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	p := NewRegistrationBot(&capturingSubmitter{}, time.Second)
	p.now = clock.now
	p.SetSessionIdle(10 * time.Minute)
	s := &recordingSender{}

	say(t, p, s, "/register")
	say(t, p, s, "Asha Rao")
	clock.advance(9 * time.Minute)
	expectContains(t, say(t, p, s, "asha@college.edu"), "mobile")

	clock.advance(9 * time.Minute)
	expectContains(t, say(t, p, s, "9876543210"), "Step 2 of 4")

	old := liveSession(p, 42)
	clock.advance(11 * time.Minute)
	expectContains(t, say(t, p, s, "AIT"), "expired", "/register")
	if liveSession(p, 42) != nil {
		t.Fatal("idle session should be dropped")
	}
	if err := old.machine.Advance(); !errors.Is(err, form.ErrClosed) {
		t.Fatalf("expired machine should be closed, got %v", err)
	}
	expectContains(t, say(t, p, s, "AIT"), "didn't understand")
}

func TestRegistrationBotSweepsOtherChats(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	p := NewRegistrationBot(&capturingSubmitter{}, time.Second)
	p.now = clock.now
	s := &recordingSender{}

	p.handle(context.Background(), s, textUpdate(7, "/register"))
	clock.advance(DefaultSessionIdle + time.Minute)
	say(t, p, s, "/register")

	if liveSession(p, 7) != nil {
		t.Fatal("abandoned session of another chat should be swept")
	}
	if liveSession(p, 42) == nil {
		t.Fatal("fresh session must be kept")
	}
}

func TestRegistrationBotKeepsSendingSession(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	release := make(chan struct{})
	started := make(chan struct{})
	sub := form.SubmitterFunc(func(ctx context.Context, _ model.RegistrationForm) error {
		close(started)
		<-release
		return nil
	})
	p := NewRegistrationBot(sub, 5*time.Second)
	p.now = clock.now
	s := &recordingSender{}

	fillToConfirm(t, p, s)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.handle(context.Background(), s, textUpdate(42, "/submit"))
	}()
	<-started

	clock.advance(DefaultSessionIdle + time.Minute)
	p.handle(context.Background(), s, textUpdate(7, "/register"))
	if liveSession(p, 42) == nil {
		t.Fatal("a session with a submission in flight must not expire")
	}
	close(release)
	<-done
	expectContains(t, s.last(t), "Registration complete")
}

func TestResolveChoice(t *testing.T) {
	tests := []struct {
		field, text, want string
	}{
		{model.FieldDepartment, "7", "Other"},
		{model.FieldDepartment, "information technology", "Information Technology"},
		{model.FieldDepartment, "0", "0"},
		{model.FieldYear, "4", "4th Year"},
		{model.FieldEvent, "5", "UI/UX Design Contest"},
		{model.FieldTeamSize, "3", "3"},
		{model.FieldTeamSize, "9", "9"},
		{model.FieldName, "1", "1"},
	}
	for _, tt := range tests {
		if got := resolveChoice(tt.field, tt.text); got != tt.want {
			t.Errorf("resolveChoice(%s, %q) = %q, want %q", tt.field, tt.text, got, tt.want)
		}
	}
}

func newAdminStore(t *testing.T) *repo.SQLiteStore {
	t.Helper()
	store, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "admin.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAdminBot(t *testing.T) {
	store := newAdminStore(t)
	ctx := context.Background()
	reg := model.Registration{
		ID: "r1",
		Form: model.RegistrationForm{
			Name: "Asha Rao", Email: "asha@college.edu", College: "AIT",
			Event: "Robotics Challenge", TeamSize: "1",
		},
		CreatedAt: time.Date(2026, 3, 1, 4, 30, 0, 0, time.UTC),
		Delivery:  model.Delivery{RegistrantNotified: true},
	}
	if err := store.SaveRegistration(ctx, reg); err != nil {
		t.Fatalf("save: %v", err)
	}

	o := NewAdminBot(store, []int64{7})
	s := &recordingSender{}
	send := func(chatID int64, text string) string {
		o.handle(ctx, s, textUpdate(chatID, text))
		return s.last(t)
	}

	expectContains(t, send(99, "/summary"), "only available to organisers")
	expectContains(t, send(7, "/registrations"), "1 registrations", "Robotics Challenge", "Asha Rao", "delivery incomplete", "01 Mar 10:00")
	expectContains(t, send(7, "/summary"), "Robotics Challenge: 1", "Paper Presentation: 0", "Total: 1")
	expectContains(t, send(7, "/help"), "/registrations", "/summary")
}

func TestAdminBotWithoutStore(t *testing.T) {
	o := NewAdminBot(nil, []int64{7})
	s := &recordingSender{}
	o.handle(context.Background(), s, textUpdate(7, "/summary"))
	expectContains(t, s.last(t), "not configured")
}
