package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Symposium/notify"
	"Symposium/repo"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

const (
	recentRegistrations = 10
	adminTimeLayout     = "02 Jan 15:04"
)

// AdminBot answers organiser commands from an allow-list of chats.
type AdminBot struct {
	store  repo.RegistrationStore
	admins map[int64]bool
	loc    *time.Location
}

func NewAdminBot(store repo.RegistrationStore, adminChats []int64) *AdminBot {
	admins := make(map[int64]bool, len(adminChats))
	for _, id := range adminChats {
		admins[id] = true
	}
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.UTC
	}
	return &AdminBot{store: store, admins: admins, loc: loc}
}

func (o *AdminBot) Handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	o.handle(ctx, b, update)
}

func (o *AdminBot) handle(ctx context.Context, sender notify.MessageSender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	command, _, _ := strings.Cut(strings.TrimSpace(update.Message.Text), " ")
	log.Info().Int64("chat", chatID).Str("command", command).Msg("admin bot command")

	var text string
	switch {
	case !o.admins[chatID]:
		text = "This command is only available to organisers."
	case o.store == nil:
		text = "Registration storage is not configured."
	default:
		var err error
		switch command {
		case "/registrations":
			text, err = o.registrationsText(ctx)
		case "/summary":
			text, err = o.summaryText(ctx)
		default:
			text = "Organiser commands:\n/registrations - Latest registrations.\n/summary - Registrations per event."
		}
		if err != nil {
			log.Error().Err(err).Str("command", command).Msg("error reading registrations")
			text = "Could not read registrations. Please try again."
		}
	}

	if _, err := sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("error sending message")
	}
}

func (o *AdminBot) registrationsText(ctx context.Context) (string, error) {
	list, err := o.store.ListRegistrations(ctx)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "No registrations yet.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d registrations", len(list))
	if len(list) > recentRegistrations {
		fmt.Fprintf(&b, ", latest %d", recentRegistrations)
		list = list[:recentRegistrations]
	}
	b.WriteString(":")
	for _, r := range list {
		fmt.Fprintf(&b, "\n\n%s - %s\n%s, %s\n%s", r.CreatedAt.In(o.loc).Format(adminTimeLayout), r.Form.Event, r.Form.Name, r.Form.College, r.Form.Email)
		if !r.Delivery.RegistrantNotified || !r.Delivery.AdminNotified {
			b.WriteString("\n(email delivery incomplete)")
		}
	}
	return b.String(), nil
}

func (o *AdminBot) summaryText(ctx context.Context) (string, error) {
	summary, err := o.store.SummarizeByEvent(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Registrations per event:")
	total := 0
	for _, s := range summary {
		fmt.Fprintf(&b, "\n%s: %d", s.Event, s.Count)
		total += s.Count
	}
	fmt.Fprintf(&b, "\nTotal: %d", total)
	return b.String(), nil
}
