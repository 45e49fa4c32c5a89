// Package notify delivers outbound email about attendance events. Senders are
// called from background workers; callers never wait on delivery.
package notify

import (
	"context"
	"errors"
	"net/mail"
)

// ErrNoRecipients is returned when a message has nobody to deliver to.
var ErrNoRecipients = errors.New("notify: message has no recipients")

// Message is a rendered email ready for delivery.
type Message struct {
	To          []mail.Address
	Subject     string
	TextContent string
	HTMLContent string
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if m.TextContent == "" && m.HTMLContent == "" {
		return errors.New("notify: message has no content")
	}
	return nil
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
