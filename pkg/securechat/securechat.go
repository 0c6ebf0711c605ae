// Package securechat is the embedding surface of securechat: secure
// buffers, a message builder and a chat-completions client whose secrets
// stay in locked memory and are zeroed on release.
//
//	c, err := securechat.NewClient([]byte("https://api.groq.com"), apiKey)
//	if err != nil { ... }
//	defer c.Close()
//
//	msg, err := securechat.NewMessage([]byte("user"), []map[string]any{
//		{"type": "text", "text": "Hello"},
//	})
//	if err != nil { ... }
//	defer msg.Close()
//
//	reply, err := c.ChatCompletion(ctx, []*securechat.Message{msg}, "llama-3.3-70b-versatile")
//	if err != nil { ... }
//	defer reply.Close()
//
// Every Buffer, Message and Client must be closed by its owner.
package securechat

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/longkey1/securechat/internal/client"
	scerrors "github.com/longkey1/securechat/internal/errors"
	"github.com/longkey1/securechat/internal/message"
	"github.com/longkey1/securechat/internal/secure"
)

type (
	// Buffer holds secret bytes in locked memory.
	Buffer = secure.Buffer
	// Message is a role plus ordered content parts, all in buffers.
	Message = message.Message
	// Client sends messages to a chat-completions endpoint.
	Client = client.Client
	// ClientOption configures a Client.
	ClientOption = client.Option
)

// Error kinds returned by this package.
type (
	DecodeError                 = scerrors.DecodeError
	MissingFieldError           = scerrors.MissingFieldError
	InvalidFieldError           = scerrors.InvalidFieldError
	UnsupportedContentTypeError = scerrors.UnsupportedContentTypeError
	ConnectionError             = scerrors.ConnectionError
	APIError                    = scerrors.APIError
	LockError                   = scerrors.LockError
)

var (
	ErrNoChoices  = scerrors.ErrNoChoices
	ErrLockFailed = scerrors.ErrLockFailed
)

// NewBuffer copies data into a new locked buffer.
func NewBuffer(data []byte) (*Buffer, error) {
	return secure.New(data)
}

// NewMessage builds a message from a role and a list of content-part
// records such as {"type": "text", "text": ...} or
// {"type": "image_url", "image_url": {"url": ...}}. On error no buffer
// stays allocated.
func NewMessage(role []byte, content []map[string]any) (*Message, error) {
	return message.Build(role, content)
}

// NewClient copies baseURL and apiKey into locked buffers.
func NewClient(baseURL, apiKey []byte, opts ...ClientOption) (*Client, error) {
	return client.New(baseURL, apiKey, opts...)
}

// WithHTTPClient sets the transport used by a Client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return client.WithHTTPClient(httpClient)
}

// WithLogger sets the logger used by a Client.
func WithLogger(logger *zap.Logger) ClientOption {
	return client.WithLogger(logger)
}

// Purge closes every buffer still alive, for use on shutdown paths.
func Purge() {
	secure.Purge()
}
