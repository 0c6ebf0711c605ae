package message

import (
	"encoding/json"
	"fmt"

	"github.com/longkey1/securechat/internal/secure"
)

// WireMessage is a message in the chat-completions request shape.
// Content is either a JSON string or a JSON array of content parts.
type WireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Wipe zeroes the encoded content. The role string cannot be wiped.
func (w *WireMessage) Wipe() {
	secure.Wipe(w.Content)
}

type wireTextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireImageURLPart struct {
	Type     string       `json:"type"`
	ImageURL wireImageURL `json:"image_url"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

// MarshalFunc encodes a value as JSON.
type MarshalFunc func(v any) ([]byte, error)

// Wire converts the message to its request shape. A message with exactly
// one part that is text carries its content as a bare string; any other
// message, including one with no parts, carries a list of tagged parts in
// order. Text is read through Buffer.Text, so non-UTF-8 content fails with
// a DecodeError.
func (m *Message) Wire() (WireMessage, error) {
	return m.WireWith(json.Marshal)
}

// WireWith is Wire with the content encoded by marshal.
func (m *Message) WireWith(marshal MarshalFunc) (WireMessage, error) {
	role, err := m.Role.Text()
	if err != nil {
		return WireMessage{}, fmt.Errorf("role: %w", err)
	}

	var content any
	if len(m.Parts) == 1 && m.Parts[0].Kind() == KindText {
		text, err := m.Parts[0].(*TextPart).Text.Text()
		if err != nil {
			return WireMessage{}, fmt.Errorf("content: %w", err)
		}
		content = text
	} else {
		list := make([]any, 0, len(m.Parts))
		for i, p := range m.Parts {
			switch p := p.(type) {
			case *TextPart:
				text, err := p.Text.Text()
				if err != nil {
					return WireMessage{}, fmt.Errorf("content part %d: %w", i, err)
				}
				list = append(list, wireTextPart{Type: string(KindText), Text: text})
			case *ImageURLPart:
				url, err := p.URL.Text()
				if err != nil {
					return WireMessage{}, fmt.Errorf("content part %d: %w", i, err)
				}
				list = append(list, wireImageURLPart{Type: string(KindImageURL), ImageURL: wireImageURL{URL: url}})
			}
		}
		content = list
	}

	encoded, err := marshal(content)
	if err != nil {
		return WireMessage{}, fmt.Errorf("encoding content: %w", err)
	}
	return WireMessage{Role: role, Content: encoded}, nil
}

// MarshalJSON encodes the message in its wire shape.
func (m *Message) MarshalJSON() ([]byte, error) {
	wire, err := m.Wire()
	if err != nil {
		return nil, err
	}
	defer wire.Wipe()
	return json.Marshal(wire)
}
