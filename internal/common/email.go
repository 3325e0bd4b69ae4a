package common

import "sync"

// EmailSender delivers transactional mail (order confirmations, shipment
// notices). Implementations must be safe for concurrent use.
type EmailSender interface {
	Send(to, subject, html string) error
}

// Email is a single captured message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail records messages instead of sending them. Tests assert on
// the Outbox.
type InMemoryEmail struct {
	mu     sync.Mutex
	Outbox []Email
}

// Send appends the message to the outbox.
func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// Last returns the most recently captured message, or false when the outbox
// is empty.
func (m *InMemoryEmail) Last() (Email, bool) {
	if m == nil {
		return Email{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Outbox) == 0 {
		return Email{}, false
	}
	return m.Outbox[len(m.Outbox)-1], true
}

// NopEmailSender discards everything. Used when mail delivery is disabled.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string) error { return nil }
