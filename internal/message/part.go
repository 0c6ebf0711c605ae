package message

import (
	"github.com/longkey1/securechat/internal/secure"
)

// Kind is the wire discriminator of a content part.
type Kind string

const (
	KindText     Kind = "text"
	KindImageURL Kind = "image_url"
)

// Part is one unit of a message body. The set of implementations is
// closed: *TextPart and *ImageURLPart.
type Part interface {
	Kind() Kind
	Close() error

	part()
}

// TextPart is plain text.
type TextPart struct {
	Text *secure.Buffer
}

// ImageURLPart references an external image resource by URL.
type ImageURLPart struct {
	URL *secure.Buffer
}

func (*TextPart) Kind() Kind { return KindText }
func (*ImageURLPart) Kind() Kind { return KindImageURL }

func (*TextPart) part() {}
func (*ImageURLPart) part() {}

// Close releases the text buffer.
func (p *TextPart) Close() error {
	return p.Text.Close()
}

// Close releases the URL buffer.
func (p *ImageURLPart) Close() error {
	return p.URL.Close()
}

func (p *TextPart) String() string {
	return "TextPart(" + secure.Placeholder + ")"
}

func (p *ImageURLPart) String() string {
	return "ImageURLPart(" + secure.Placeholder + ")"
}
