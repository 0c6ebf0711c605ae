package message

import (
	"fmt"

	scerrors "github.com/longkey1/securechat/internal/errors"
	"github.com/longkey1/securechat/internal/secure"
)

// Description is an untyped content-part record, as received from a
// caller or decoded from a conversation file:
//
//	{"type": "text", "text": "hello"}
//	{"type": "image_url", "image_url": {"url": "https://..."}}
//
// Byte fields may hold []byte or string.
type Description = map[string]any

type options struct {
	allocator *secure.Allocator
}

// Option configures Build.
type Option func(*options)

// WithAllocator builds buffers from a instead of the default allocator.
func WithAllocator(a *secure.Allocator) Option {
	return func(o *options) {
		o.allocator = a
	}
}

// Build validates descriptions and copies role and every byte field into
// secure buffers. It is all-or-nothing: on any error every buffer created
// so far is closed and no message is returned.
func Build(role []byte, descriptions []Description, opts ...Option) (*Message, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.allocator == nil {
		o.allocator = secure.Default()
	}

	roleBuffer, err := o.allocator.New(role)
	if err != nil {
		return nil, fmt.Errorf("role: %w", err)
	}

	parts := make([]Part, 0, len(descriptions))
	for _, d := range descriptions {
		part, err := buildPart(o.allocator, d)
		if err != nil {
			for _, p := range parts {
				_ = p.Close()
			}
			_ = roleBuffer.Close()
			return nil, err
		}
		parts = append(parts, part)
	}

	return New(roleBuffer, parts...), nil
}

func buildPart(a *secure.Allocator, d Description) (Part, error) {
	rawType, ok := d["type"]
	if !ok {
		return nil, &scerrors.MissingFieldError{Field: "type", Context: "content part"}
	}
	kind, ok := rawType.(string)
	if !ok {
		return nil, &scerrors.InvalidFieldError{Field: "type", Want: "a string", Got: typeName(rawType)}
	}

	switch Kind(kind) {
	case KindText:
		text, err := byteField(d, "text", "type 'text'")
		if err != nil {
			return nil, err
		}
		buffer, err := a.New(text)
		if err != nil {
			return nil, fmt.Errorf("text: %w", err)
		}
		return &TextPart{Text: buffer}, nil

	case KindImageURL:
		rawImage, ok := d["image_url"]
		if !ok {
			return nil, &scerrors.MissingFieldError{Field: "image_url", Context: "type 'image_url'"}
		}
		image, err := objectField(rawImage)
		if err != nil {
			return nil, err
		}
		url, err := byteField(image, "url", "image_url object")
		if err != nil {
			return nil, err
		}
		buffer, err := a.New(url)
		if err != nil {
			return nil, fmt.Errorf("image_url: %w", err)
		}
		return &ImageURLPart{URL: buffer}, nil

	default:
		return nil, &scerrors.UnsupportedContentTypeError{Type: kind}
	}
}

// byteField returns the bytes of d[field]. The returned slice may alias
// the caller's []byte; it is only read before being copied.
func byteField(d map[string]any, field, context string) ([]byte, error) {
	raw, ok := d[field]
	if !ok {
		return nil, &scerrors.MissingFieldError{Field: field, Context: context}
	}
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, &scerrors.InvalidFieldError{Field: field, Want: "bytes or a string", Got: typeName(raw)}
	}
}

func objectField(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case map[string][]byte:
		out := make(map[string]any, len(v))
		for k, b := range v {
			out[k] = b
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, nil
	default:
		return nil, &scerrors.InvalidFieldError{Field: "image_url", Want: "an object", Got: typeName(raw)}
	}
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
