package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
	_ "time/tzdata"

	"Symposium/model"
)

//go:embed templates/*.html
var templateFS embed.FS

const experiencePreviewLength = 80

// Branding is the symposium identity printed in every message.
type Branding struct {
	Organiser string
	Symposium string
	Dates     string
	Contact   string
}

var DefaultBranding = Branding{
	Organiser: "Adithya Institute of Technology",
	Symposium: "Symposium 2025",
	Dates:     "March 12–13",
	Contact:   "symposium@ait.edu",
}

// Message is a rendered email ready for a Mailer.
type Message struct {
	FromName string
	To       string
	Subject  string
	HTML     string
}

type templateData struct {
	Branding
	Form       model.RegistrationForm
	Experience string
	Received   string
}

// Renderer builds the registrant confirmation and the admin alert.
type Renderer struct {
	branding   Branding
	registrant *template.Template
	admin      *template.Template
	location   *time.Location
	now        func() time.Time
}

// NewRenderer parses the embedded templates
func NewRenderer(branding Branding) (*Renderer, error) {
	registrant, err := template.ParseFS(templateFS, "templates/registrant.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing registrant template: %w", err)
	}
	admin, err := template.ParseFS(templateFS, "templates/admin.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing admin template: %w", err)
	}
	location, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return nil, fmt.Errorf("error loading IST location: %w", err)
	}
	return &Renderer{
		branding:   branding,
		registrant: registrant,
		admin:      admin,
		location:   location,
		now:        time.Now,
	}, nil
}

// Registrant renders the confirmation sent to the person who registered
func (r *Renderer) Registrant(f model.RegistrationForm) (Message, error) {
	body, err := r.execute(r.registrant, r.data(f))
	if err != nil {
		return Message{}, err
	}
	return Message{
		FromName: fmt.Sprintf("%s – AIT", r.branding.Symposium),
		To:       f.Email,
		Subject:  fmt.Sprintf("Registration Confirmed – %s | %s", f.Event, r.branding.Symposium),
		HTML:     body,
	}, nil
}

// Admin renders the new-registration alert for the organisers
func (r *Renderer) Admin(to string, f model.RegistrationForm) (Message, error) {
	body, err := r.execute(r.admin, r.data(f))
	if err != nil {
		return Message{}, err
	}
	return Message{
		FromName: "Symposium Bot",
		To:       to,
		Subject:  fmt.Sprintf("New Registration: %s – %s", f.Name, f.Event),
		HTML:     body,
	}, nil
}

func (r *Renderer) data(f model.RegistrationForm) templateData {
	return templateData{
		Branding:   r.branding,
		Form:       f,
		Experience: Preview(f.Experience, experiencePreviewLength),
		Received:   r.now().In(r.location).Format("02/01/2006, 3:04:05 pm"),
	}
}

func (r *Renderer) execute(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("error rendering %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// Preview cuts s to at most n runes, marking the cut with an ellipsis.
func Preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
