// Package message models chat messages whose role and content live in
// secure buffers, and converts them to the chat-completions wire shape.
package message

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap/zapcore"

	"github.com/longkey1/securechat/internal/logging"
	"github.com/longkey1/securechat/internal/secure"
)

// Message is a role plus an ordered list of content parts. It owns every
// buffer it holds and is immutable after construction.
type Message struct {
	Role  *secure.Buffer
	Parts []Part
}

// New assembles a message from buffers the caller already owns.
// Ownership of role and parts moves to the message.
func New(role *secure.Buffer, parts ...Part) *Message {
	return &Message{Role: role, Parts: parts}
}

// Text builds a single-text message with the default allocator.
func Text(role, text string) (*Message, error) {
	return Build([]byte(role), []Description{{"type": string(KindText), "text": text}})
}

// Close releases the role and every part. It is safe to call more than
// once and on a nil message.
func (m *Message) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	errs = append(errs, m.Role.Close())
	for _, p := range m.Parts {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// String never reveals the role or content.
func (m *Message) String() string {
	return fmt.Sprintf("SecureMessage(role=%s, parts=%d)", secure.Placeholder, len(m.Parts))
}

// GoString implements fmt.GoStringer for %#v.
func (m *Message) GoString() string {
	return m.String()
}

// Format renders the redacted form for every verb.
func (m *Message) Format(f fmt.State, verb rune) {
	_, _ = io.WriteString(f, m.String())
}

// MarshalLogObject emits the part kinds only.
func (m *Message) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("role", logging.RedactedValue)
	return enc.AddArray("parts", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
		for _, p := range m.Parts {
			arr.AppendString(string(p.Kind()))
		}
		return nil
	}))
}
