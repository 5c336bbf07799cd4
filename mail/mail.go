// Package mail delivers the engine's verification emails. The engine depends
// only on [Mailer]; the Mailgun adapter is the shipped production
// implementation and [Discard] serves tests and local setups.
package mail

import (
	"context"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// Email is a single outbound message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer sends an email. Implementations must be safe for concurrent use; the
// engine dispatches from short-lived goroutines.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// Mailgun sends through the Mailgun HTTP API.
type Mailgun struct {
	domain  string
	apiKey  string
	apiBase string
}

// NewMailgun creates a Mailgun mailer. apiBase may be empty to use the
// default US endpoint.
func NewMailgun(domain, apiKey, apiBase string) *Mailgun {
	return &Mailgun{
		domain:  domain,
		apiKey:  apiKey,
		apiBase: apiBase,
	}
}

func (m *Mailgun) Send(ctx context.Context, e Email) error {
	mg := mailgun.NewMailgun(m.domain, m.apiKey)
	if m.apiBase != "" {
		mg.SetAPIBase(m.apiBase)
	}

	message := mg.NewMessage(e.From, e.Subject, e.Body, e.To)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, _, err := mg.Send(ctx, message)
	return err
}

// Discard is a Mailer that drops all messages.
type Discard struct{}

func (Discard) Send(context.Context, Email) error { return nil }
