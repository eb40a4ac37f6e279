package mail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// DefaultBodyTemplate is the plain-text body of the daily mail.
const DefaultBodyTemplate = `Hey there! You're receiving an email because you're subscribed to Cat Facts, the number one source for facts about facts.

Did you know? {{ .Fact | trim }}
`

// FactMailParams are the values available to the body template.
type FactMailParams struct {
	Fact      string
	Recipient string
	// Date is the local calendar day of the dispatch, formatted 2006-01-02.
	Date string
}

// Renderer builds the daily message for one recipient.
type Renderer struct {
	subject string
	body    *template.Template
}

// NewRenderer parses bodyTemplate (DefaultBodyTemplate when empty) with the
// sprig text function map.
func NewRenderer(subject, bodyTemplate string) (*Renderer, error) {
	if strings.TrimSpace(bodyTemplate) == "" {
		bodyTemplate = DefaultBodyTemplate
	}
	tmpl, err := template.New("catfact").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(bodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse mail body template: %w", err)
	}
	return &Renderer{subject: subject, body: tmpl}, nil
}

// Render returns the message for recipient with fact interpolated.
func (r *Renderer) Render(recipient, fact string, day time.Time) (Message, error) {
	var buf bytes.Buffer
	params := FactMailParams{
		Fact:      fact,
		Recipient: recipient,
		Date:      day.Format(time.DateOnly),
	}
	if err := r.body.Execute(&buf, params); err != nil {
		return Message{}, fmt.Errorf("render mail body: %w", err)
	}
	return Message{To: recipient, Subject: r.subject, Body: buf.String()}, nil
}

func (r *Renderer) Subject() string {
	return r.subject
}
