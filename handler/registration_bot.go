package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"Symposium/form"
	"Symposium/model"
	"Symposium/notify"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

const (
	helpText = `Commands:
/events - See the symposium events.
/register - Register for an event.
/back - Go back to the previous step.
/skip - Leave an optional answer blank.
/submit - Send your registration from the confirmation step.
/cancel - Abandon the registration in progress.`

	unknownCommandText = "I didn't understand that command. Use /register to sign up or /help for the list of commands."
	expiredText        = "Your registration expired after a period of inactivity. Send /register to start again."
)

// DefaultSessionIdle is how long an untouched registration is kept.
const DefaultSessionIdle = 30 * time.Minute

// RegistrationBot walks a Telegram chat through the registration wizard.
// Each chat owns one form.Machine; replies are built from the machine's events.
type RegistrationBot struct {
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	submitter form.Submitter
	idle      time.Duration
	sessions  map[int64]*chatSession
}

func NewRegistrationBot(submitter form.Submitter, timeout time.Duration) *RegistrationBot {
	return &RegistrationBot{
		submitter: submitter,
		timeout:   timeout,
		now:       time.Now,
		idle:      DefaultSessionIdle,
		sessions:  make(map[int64]*chatSession),
	}
}

// SetSessionIdle changes how long a session may go without an update before
// it is dropped. Non-positive values are ignored.
func (p *RegistrationBot) SetSessionIdle(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = d
}

// chatSession is one chat's registration attempt. turn serializes updates
// for the chat except /submit, which the machine itself guards.
type chatSession struct {
	turn    sync.Mutex
	machine *form.Machine

	mu     sync.Mutex
	field  string
	outbox []string

	// guarded by RegistrationBot.mu
	lastSeen time.Time
}

// SetSubmitter replaces the submitter used by sessions started afterwards.
func (p *RegistrationBot) SetSubmitter(submitter form.Submitter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitter = submitter
}

func (p *RegistrationBot) Handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	p.handle(ctx, b, update)
}

func (p *RegistrationBot) handle(ctx context.Context, sender notify.MessageSender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	log.Debug().Int64("chat", chatID).Str("text", text).Msg("registration bot update")

	var reply string
	switch text {
	case "/start":
		name := update.Message.Chat.FirstName
		if update.Message.From != nil && update.Message.From.FirstName != "" {
			name = update.Message.From.FirstName
		}
		reply = fmt.Sprintf("Hey %s! I can register you for the symposium events.\n\n%s", name, helpText)
	case "/help":
		reply = helpText
	case "/events":
		reply = eventsText()
	case "/register":
		s := p.startSession(chatID)
		reply = "Let's get you registered. Send /cancel at any time to stop.\n\n" + stepHeader(model.FirstStep) + prompt(s.currentField())
	case "/cancel":
		if p.endSession(chatID) {
			reply = "Registration cancelled. Send /register to start again."
		} else {
			reply = "There is no registration in progress."
		}
	default:
		s, expired := p.session(chatID)
		if expired {
			reply = expiredText
			break
		}
		if s == nil {
			reply = unknownCommandText
			break
		}
		reply = p.continueSession(ctx, chatID, s, text)
	}

	if reply == "" {
		return
	}
	if _, err := sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("error sending message")
	}
}

func (p *RegistrationBot) continueSession(ctx context.Context, chatID int64, s *chatSession, text string) string {
	if text == "/submit" {
		return p.submit(ctx, chatID, s)
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	switch text {
	case "/back":
		if s.machine.Step() == model.FirstStep {
			s.say(prompt(s.currentField()))
			break
		}
		if err := s.machine.Retreat(); err != nil {
			s.say(busyText(err))
		}
	default:
		s.answer(text)
	}
	return s.flush()
}

func (p *RegistrationBot) submit(ctx context.Context, chatID int64, s *chatSession) string {
	if s.machine.Step() != model.StepConfirm {
		return "You can submit once every step is filled in.\n" + prompt(s.currentField())
	}
	err := s.machine.Submit(ctx)
	switch {
	case err == nil:
		p.dropSession(chatID, s)
	case errors.Is(err, form.ErrSubmissionInFlight), errors.Is(err, form.ErrAlreadySubmitted):
		return busyText(err)
	case errors.Is(err, form.ErrSubmissionFailed):
		log.Warn().Err(err).Int64("chat", chatID).Msg("registration submission failed")
	default:
		log.Error().Err(err).Int64("chat", chatID).Msg("error submitting registration")
	}
	return s.flush()
}

func (p *RegistrationBot) newSession() *chatSession {
	p.mu.Lock()
	submitter := p.submitter
	p.mu.Unlock()
	s := &chatSession{field: model.StepFields[model.FirstStep][0]}
	s.machine = form.New(submitter, form.WithSubmitTimeout(p.timeout), form.WithListener(s.onEvent))
	return s
}

// startSession replaces any session the chat already has.
func (p *RegistrationBot) startSession(chatID int64) *chatSession {
	s := p.newSession()
	p.mu.Lock()
	p.expireLocked()
	old := p.sessions[chatID]
	s.lastSeen = p.now()
	p.sessions[chatID] = s
	p.mu.Unlock()
	if old != nil {
		old.machine.Close()
	}
	return s
}

// session returns the chat's live session and marks it as seen. expired
// reports that the chat's session was just dropped for inactivity.
func (p *RegistrationBot) session(chatID int64) (s *chatSession, expired bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dropped := p.expireLocked()
	if s = p.sessions[chatID]; s != nil {
		s.lastSeen = p.now()
	}
	return s, dropped[chatID]
}

func (p *RegistrationBot) endSession(chatID int64) bool {
	p.mu.Lock()
	p.expireLocked()
	s, ok := p.sessions[chatID]
	delete(p.sessions, chatID)
	p.mu.Unlock()
	if ok {
		s.machine.Close()
	}
	return ok
}

// expireLocked drops sessions idle for longer than p.idle. A session with a
// submission in flight is kept until it resolves.
func (p *RegistrationBot) expireLocked() map[int64]bool {
	cutoff := p.now().Add(-p.idle)
	var dropped map[int64]bool
	for id, s := range p.sessions {
		if !s.lastSeen.Before(cutoff) || s.machine.Status().State == form.Sending {
			continue
		}
		s.machine.Close()
		delete(p.sessions, id)
		if dropped == nil {
			dropped = make(map[int64]bool)
		}
		dropped[id] = true
		log.Debug().Int64("chat", id).Msg("registration session expired")
	}
	return dropped
}

// dropSession forgets s once it has completed, unless /register already
// replaced it.
func (p *RegistrationBot) dropSession(chatID int64, s *chatSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions[chatID] == s {
		delete(p.sessions, chatID)
	}
}

func (s *chatSession) answer(text string) {
	field := s.currentField()
	if field == "" {
		s.say("Send /submit to register or /back to make changes.")
		return
	}

	var value string
	if text == "/skip" {
		v, ok := skipValue(field)
		if !ok {
			s.say("This one is required.\n" + prompt(field))
			return
		}
		value = v
	} else if strings.HasPrefix(text, "/") {
		s.say(unknownCommandText)
		return
	} else {
		value = resolveChoice(field, text)
	}

	if err := s.machine.UpdateField(field, value); err != nil {
		s.say(busyText(err))
		return
	}
	if err := s.machine.TouchField(field); err != nil {
		s.say(busyText(err))
		return
	}
	if msg := s.machine.VisibleError(field); msg != "" {
		s.say(msg + "\n" + prompt(field))
		return
	}

	if next := nextField(s.machine.Step(), field); next != "" {
		s.setField(next)
		s.say(prompt(next))
		return
	}
	if err := s.machine.Advance(); err != nil && !errors.Is(err, form.ErrStepInvalid) {
		s.say(busyText(err))
	}
}

// onEvent turns machine transitions into chat replies.
func (s *chatSession) onEvent(ev form.Event) {
	switch e := ev.(type) {
	case form.ValidationFailed:
		field := firstInOrder(e.Step, e.Fields)
		s.setField(field)
		s.say(s.machine.Errors()[field] + "\n" + prompt(field))
	case form.StepChanged:
		if e.To == model.StepConfirm {
			s.setField("")
			s.say(confirmText(s.machine.Form()))
			return
		}
		field := model.StepFields[e.To][0]
		s.setField(field)
		s.say(stepHeader(e.To) + prompt(field))
	case form.SubmissionStarted:
		s.say("Sending your registration...")
	case form.SubmissionSucceeded:
		s.say(successText(e.Form))
	case form.SubmissionFailed:
		s.say(e.Reason + "\nSend /submit to try again or /back to make changes.")
	}
}

func (s *chatSession) currentField() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.field
}

func (s *chatSession) setField(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field = field
}

func (s *chatSession) say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, text)
}

func (s *chatSession) flush() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := strings.Join(s.outbox, "\n\n")
	s.outbox = nil
	return out
}

func busyText(err error) string {
	switch {
	case errors.Is(err, form.ErrSubmissionInFlight):
		return "Your registration is being sent, please wait."
	case errors.Is(err, form.ErrAlreadySubmitted):
		return "You're already registered. Send /register to sign up for another event."
	case errors.Is(err, form.ErrClosed):
		return "This registration was closed. Send /register to start again."
	}
	log.Error().Err(err).Msg("unexpected registration error")
	return "Something went wrong. Send /cancel and try again."
}

func firstInOrder(step model.Step, fields []string) string {
	for _, name := range model.StepFields[step] {
		for _, f := range fields {
			if f == name {
				return name
			}
		}
	}
	if len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func nextField(step model.Step, field string) string {
	names := model.StepFields[step]
	for i, name := range names {
		if name == field && i+1 < len(names) {
			return names[i+1]
		}
	}
	return ""
}

func choices(field string) []string {
	switch field {
	case model.FieldDepartment:
		return model.Departments
	case model.FieldYear:
		return model.Years
	case model.FieldEvent:
		return model.EventNames()
	case model.FieldTeamSize:
		return model.TeamSizes
	}
	return nil
}

// resolveChoice maps a numbered or case-insensitive answer onto its option.
// Anything else is returned unchanged for validation to reject.
func resolveChoice(field, text string) string {
	options := choices(field)
	if len(options) == 0 {
		return text
	}
	if field != model.FieldTeamSize {
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(options) {
			return options[n-1]
		}
	}
	for _, o := range options {
		if strings.EqualFold(o, text) {
			return o
		}
	}
	return text
}

func skipValue(field string) (string, bool) {
	switch field {
	case model.FieldTeamName, model.FieldExperience:
		return "", true
	case model.FieldTeamSize:
		return model.DefaultTeamSize, true
	}
	return "", false
}

func stepHeader(step model.Step) string {
	return fmt.Sprintf("Step %d of %d: %s details\n", int(step)+1, int(model.LastStep)+1, step)
}

func numbered(options []string) string {
	var b strings.Builder
	for i, o := range options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, o)
	}
	return b.String()
}

func prompt(field string) string {
	switch field {
	case model.FieldName:
		return "What's your full name?"
	case model.FieldEmail:
		return "What's your email address?"
	case model.FieldPhone:
		return "What's your 10-digit mobile number?"
	case model.FieldCollege:
		return "Which college are you from?"
	case model.FieldDepartment:
		return "Which department are you in? Reply with a number." + numbered(model.Departments)
	case model.FieldYear:
		return "Which year of study are you in? Reply with a number." + numbered(model.Years)
	case model.FieldEvent:
		return "Which event would you like to register for? Reply with a number." + numbered(model.EventNames())
	case model.FieldTeamName:
		return "What's your team name? Send /skip if you're registering alone."
	case model.FieldTeamSize:
		return "How many members are in your team (1-5)? Send /skip for 1."
	case model.FieldExperience:
		return "Any prior experience you'd like to share? Send /skip to leave it blank."
	}
	return "Send /submit to register or /back to make changes."
}

func eventsText() string {
	var b strings.Builder
	b.WriteString("Symposium events:")
	for _, e := range model.Events {
		fmt.Fprintf(&b, "\n\n%s (%s)\n%s, %s at %s\n%s", e.Name, e.Category, e.Date, e.Time, e.Venue, e.Description)
	}
	b.WriteString("\n\nSend /register to sign up.")
	return b.String()
}

func confirmText(f model.RegistrationForm) string {
	var b strings.Builder
	b.WriteString(stepHeader(model.StepConfirm))
	b.WriteString("Please check your details:\n")
	fmt.Fprintf(&b, "Name: %s\n", f.Name)
	fmt.Fprintf(&b, "Email: %s\n", f.Email)
	fmt.Fprintf(&b, "Phone: %s\n", f.Phone)
	fmt.Fprintf(&b, "College: %s\n", f.College)
	fmt.Fprintf(&b, "Department: %s\n", f.Department)
	fmt.Fprintf(&b, "Year: %s\n", f.Year)
	fmt.Fprintf(&b, "Event: %s\n", f.Event)
	if f.TeamName != "" {
		fmt.Fprintf(&b, "Team: %s\n", f.TeamName)
	}
	fmt.Fprintf(&b, "Team Size: %s\n", f.TeamSize)
	if f.Experience != "" {
		fmt.Fprintf(&b, "Experience: %s\n", f.Experience)
	}
	b.WriteString("\nSend /submit to register or /back to make changes.")
	return b.String()
}

func successText(f model.RegistrationForm) string {
	var b strings.Builder
	b.WriteString("Registration complete!\n")
	fmt.Fprintf(&b, "You're registered for %s.\n", f.Event)
	if e, ok := model.FindEvent(f.Event); ok {
		fmt.Fprintf(&b, "%s, %s at %s\n", e.Date, e.Time, e.Venue)
	}
	fmt.Fprintf(&b, "A confirmation email has been sent to %s.", f.Email)
	return b.String()
}
