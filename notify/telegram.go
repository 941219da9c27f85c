package notify

import (
	"context"
	"fmt"
	"strings"

	"Symposium/model"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender is the part of *bot.Bot used to push messages.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramAlerter posts a short registration notice to the organisers' chat.
type TelegramAlerter struct {
	sender MessageSender
	chatID int64
}

func NewTelegramAlerter(sender MessageSender, chatID int64) *TelegramAlerter {
	return &TelegramAlerter{sender: sender, chatID: chatID}
}

func (t *TelegramAlerter) Alert(ctx context.Context, f model.RegistrationForm) error {
	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   AlertText(f),
	})
	if err != nil {
		return fmt.Errorf("error sending telegram alert: %w", err)
	}
	return nil
}

// AlertText is the plain-text form of the admin alert.
func AlertText(f model.RegistrationForm) string {
	var b strings.Builder
	b.WriteString("New registration\n")
	fmt.Fprintf(&b, "- Name: %s\n", f.Name)
	fmt.Fprintf(&b, "- Email: %s\n", f.Email)
	fmt.Fprintf(&b, "- Phone: %s\n", f.Phone)
	fmt.Fprintf(&b, "- College: %s (%s, %s)\n", f.College, f.Department, f.Year)
	fmt.Fprintf(&b, "- Event: %s\n", f.Event)
	if f.TeamName != "" {
		fmt.Fprintf(&b, "- Team: %s (%s members)\n", f.TeamName, f.TeamSize)
	}
	if f.Experience != "" {
		fmt.Fprintf(&b, "- Experience: %s\n", Preview(f.Experience, experiencePreviewLength))
	}
	return b.String()
}
