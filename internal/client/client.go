// Package client sends secure messages to an OpenAI-compatible
// chat-completions endpoint and returns the reply in a secure buffer.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	scerrors "github.com/longkey1/securechat/internal/errors"
	"github.com/longkey1/securechat/internal/logging"
	"github.com/longkey1/securechat/internal/message"
	"github.com/longkey1/securechat/internal/metrics"
	"github.com/longkey1/securechat/internal/secure"
)

const (
	// CompletionsPath is appended to the base URL to form the endpoint.
	CompletionsPath = "/openai/v1/chat/completions"

	// UnreadableErrorBody replaces an error response body that could
	// not be read.
	UnreadableErrorBody = "Could not read error body"

	// RequestIDHeader carries the per-call request id.
	RequestIDHeader = "X-Request-Id"

	maxErrorBody = 64 << 10
)

// Client holds the base URL and API key in secure buffers. It has no
// per-call state and is safe for concurrent use.
type Client struct {
	baseURL *secure.Buffer
	apiKey  *secure.Buffer

	httpClient *http.Client
	codec      Codec
	logger     *zap.Logger
	allocator  *secure.Allocator
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport. Its timeout, if any, is the only
// timeout applied to a call.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCodec replaces the JSON codec. It encodes each message's content
// as well as the request envelope, and decodes the response.
func WithCodec(codec Codec) Option {
	return func(c *Client) {
		c.codec = codec
	}
}

// WithLogger sets the logger. Secrets are never logged.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAllocator sets the allocator for the credentials and replies.
func WithAllocator(allocator *secure.Allocator) Option {
	return func(c *Client) {
		c.allocator = allocator
	}
}

// WithMetrics records request outcomes and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func newClient(opts []Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		codec:      JSONCodec{},
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.allocator == nil {
		c.allocator = secure.Default()
	}
	return c
}

// New copies baseURL and apiKey into secure buffers. The caller keeps
// ownership of its slices and should wipe them.
func New(baseURL, apiKey []byte, opts ...Option) (*Client, error) {
	c := newClient(opts)

	var err error
	c.baseURL, err = c.allocator.New(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base URL: %w", err)
	}
	c.apiKey, err = c.allocator.New(apiKey)
	if err != nil {
		_ = c.baseURL.Close()
		return nil, fmt.Errorf("API key: %w", err)
	}
	return c, nil
}

// NewWithBuffers creates a client that takes ownership of baseURL and
// apiKey; they are closed by Client.Close.
func NewWithBuffers(baseURL, apiKey *secure.Buffer, opts ...Option) *Client {
	c := newClient(opts)
	c.baseURL = baseURL
	c.apiKey = apiKey
	return c
}

// Close releases the base URL and API key.
func (c *Client) Close() error {
	return errors.Join(c.baseURL.Close(), c.apiKey.Close())
}

// ChatCompletion sends messages to the chat-completions endpoint and
// returns the first choice's content in a new secure buffer. A null
// content is returned as an empty buffer. The caller owns the messages
// and the returned buffer.
//
// ctx is handed to the transport unchanged; no timeout or retry is added.
func (c *Client) ChatCompletion(ctx context.Context, messages []*message.Message, model string) (*secure.Buffer, error) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := c.logger.With(
		zap.String("request_id", requestID),
		zap.String("model", model),
		zap.Int("messages", len(messages)),
	)

	reply, err := c.chatCompletion(ctx, requestID, messages, model, logger)

	outcome := outcomeOf(err)
	c.metrics.ChatRequest(outcome, time.Since(start))
	if err != nil {
		logger.Debug("chat completion failed", zap.String("outcome", outcome), zap.Error(err))
		return nil, err
	}
	logger.Debug("chat completion succeeded",
		zap.Duration("elapsed", time.Since(start)),
		zap.Object("reply", reply))
	return reply, nil
}

func (c *Client) chatCompletion(ctx context.Context, requestID string, messages []*message.Message, model string, logger *zap.Logger) (*secure.Buffer, error) {
	wires := make([]message.WireMessage, 0, len(messages))
	defer func() {
		for i := range wires {
			wires[i].Wipe()
		}
	}()
	for i, m := range messages {
		wire, err := m.WireWith(c.codec.Marshal)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		wires = append(wires, wire)
	}

	body, err := c.codec.Marshal(chatRequest{Messages: wires, Model: model})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	defer secure.Wipe(body)

	baseURL, err := c.baseURL.Text()
	if err != nil {
		return nil, fmt.Errorf("base URL: %w", err)
	}
	apiKey, err := c.apiKey.Text()
	if err != nil {
		return nil, fmt.Errorf("API key: %w", err)
	}

	// A malformed base URL surfaces here rather than in Do; it is
	// reported the same way as any other failure to send.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+CompletionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, &scerrors.ConnectionError{Err: transportCause(err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set(RequestIDHeader, requestID)

	logger.Debug("sending chat completion request",
		zap.Int("body_bytes", len(body)),
		logging.Redacted("authorization"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &scerrors.ConnectionError{Err: transportCause(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &scerrors.APIError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	data, err := io.ReadAll(resp.Body)
	defer secure.Wipe(data)
	if err != nil {
		return nil, &scerrors.DecodeError{Context: "response body", Offset: -1, Err: err}
	}

	var parsed chatResponse
	if err := c.codec.Unmarshal(data, &parsed); err != nil {
		return nil, &scerrors.DecodeError{Context: "response body", Offset: -1, Err: err}
	}
	if parsed.Choices == nil {
		return nil, &scerrors.DecodeError{
			Context: "response body",
			Offset:  -1,
			Err:     &scerrors.MissingFieldError{Field: "choices"},
		}
	}
	if len(*parsed.Choices) == 0 {
		return nil, scerrors.ErrNoChoices
	}

	var content []byte
	if text := (*parsed.Choices)[0].Message.Content; text != nil {
		content = []byte(*text)
	}
	defer secure.Wipe(content)

	return c.allocator.New(content)
}

// readErrorBody returns the response body as diagnostic text, or a fixed
// placeholder if it cannot be read.
func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return UnreadableErrorBody
	}
	return string(data)
}

// transportCause strips the *url.Error wrapper, whose message repeats
// the endpoint URL.
func transportCause(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func outcomeOf(err error) string {
	var (
		connErr   *scerrors.ConnectionError
		apiErr    *scerrors.APIError
		decodeErr *scerrors.DecodeError
	)
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &connErr):
		return metrics.OutcomeConnectionError
	case errors.As(err, &apiErr):
		return metrics.OutcomeAPIError
	case errors.Is(err, scerrors.ErrNoChoices):
		return metrics.OutcomeNoChoices
	case errors.As(err, &decodeErr):
		return metrics.OutcomeDecodeError
	default:
		return metrics.OutcomeRequestError
	}
}
