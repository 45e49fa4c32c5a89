package notify

import (
	"context"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleSenderRecordsMessages(t *testing.T) {
	s := NewConsoleSender(nil)
	msg := Message{
		To:          []mail.Address{{Name: "Asha", Address: "asha@example.edu"}},
		Subject:     "Attendance open",
		TextContent: "Check in now",
	}
	require.NoError(t, s.Send(context.Background(), msg))

	sent := s.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Attendance open", sent[0].Subject)
}

func TestMessageValidate(t *testing.T) {
	assert.ErrorIs(t, Message{TextContent: "x"}.Validate(), ErrNoRecipients)
	assert.Error(t, Message{To: []mail.Address{{Address: "a@b.c"}}}.Validate())
}

func TestSendGridPrepare(t *testing.T) {
	s := NewSendGridSender("key", "LMS", "noreply@example.edu")
	m := s.prepare(Message{
		To:          []mail.Address{{Address: "asha@example.edu"}},
		Subject:     "Check-in recorded",
		TextContent: "present",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[LMS] Check-in recorded", m.Personalizations[0].Subject)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
