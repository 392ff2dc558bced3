package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
	"github.com/mmuslimabdulj/goat-dm/internal/translate"
)

// Directory resolves a username to its live connection
type Directory interface {
	Resolve(username string) (domain.Endpoint, bool)
}

// Messenger persists direct messages and pushes them to live connections
type Messenger struct {
	messages   store.Messages
	translator translate.Translator
	directory  Directory
	target     string
	timeout    time.Duration
	log        *slog.Logger
}

// NewMessenger wires the router. Outgoing messages are translated into target,
// each attempt bounded by timeout.
func NewMessenger(messages store.Messages, translator translate.Translator, directory Directory,
	target string, timeout time.Duration, log *slog.Logger) *Messenger {
	if translator == nil {
		translator = translate.Nop{}
	}
	if target == "" {
		target = domain.DefaultTranslateTarget
	}
	if timeout <= 0 {
		timeout = domain.DefaultTranslateTimeout
	}
	return &Messenger{
		messages:   messages,
		translator: translator,
		directory:  directory,
		target:     target,
		timeout:    timeout,
		log:        log,
	}
}

// Send stores body from sender to receiver, then pushes new_private_message
// to the receiver's connection (if any) and to origin. The message is stored
// before any delivery is attempted and delivery never undoes it.
func (m *Messenger) Send(ctx context.Context, origin domain.Endpoint, sender, receiver, body string) (*domain.Message, error) {
	if sender == "" {
		return nil, domain.ErrUnauthenticated
	}
	receiver = strings.TrimSpace(receiver)
	if receiver == "" || strings.TrimSpace(body) == "" {
		return nil, domain.ErrInvalidMessage
	}

	msg := domain.NewMessage(sender, receiver, body, m.translate(ctx, body))
	if err := m.messages.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	event, err := domain.NewPrivateMessageEvent(msg)
	if err != nil {
		return msg, fmt.Errorf("failed to encode event: %w", err)
	}

	if ep, ok := m.directory.Resolve(receiver); ok && ep != origin {
		ep.Send(event)
	}
	if origin != nil {
		origin.Send(event)
	}
	return msg, nil
}

// translate returns nil when no translation could be produced
func (m *Messenger) translate(ctx context.Context, body string) *string {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out, err := m.translator.Translate(ctx, body, domain.AutoLanguage, m.target)
	if err != nil {
		m.log.DebugContext(ctx, "translation unavailable", "err", err)
		return nil
	}
	return &out
}

// Typing relays a typing indicator to receiver if connected
func (m *Messenger) Typing(sender, receiver string) {
	ep, ok := m.directory.Resolve(strings.TrimSpace(receiver))
	if !ok || sender == "" {
		return
	}
	event, err := domain.NewTypingEvent(sender)
	if err != nil {
		return
	}
	ep.Send(event)
}

// History returns the conversation between a and b, oldest first
func (m *Messenger) History(ctx context.Context, a, b string) ([]domain.Message, error) {
	return m.messages.Conversation(ctx, a, b)
}
