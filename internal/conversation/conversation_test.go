package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scerrors "github.com/longkey1/securechat/internal/errors"
	"github.com/longkey1/securechat/internal/message"
	"github.com/longkey1/securechat/internal/secure"
	"github.com/longkey1/securechat/internal/secure/securetest"
)

const wantWire = `[
  {"role":"system","content":"Answer in one sentence."},
  {"role":"user","content":[
    {"type":"text","text":"What is in this picture?"},
    {"type":"image_url","image_url":{"url":"https://example.com/cat.png"}}
  ]}
]`

var documents = map[string]string{
	"chat.toml": `
[[messages]]
role = "system"
content = "Answer in one sentence."

[[messages]]
role = "user"
content = [
  { type = "text", text = "What is in this picture?" },
  { type = "image_url", image_url = { url = "https://example.com/cat.png" } },
]
`,
	"chat.yaml": `
messages:
  - role: system
    content: Answer in one sentence.
  - role: user
    content:
      - type: text
        text: What is in this picture?
      - type: image_url
        image_url:
          url: https://example.com/cat.png
`,
	"chat.jsonc": `{
  // system prompt
  "messages": [
    {"role": "system", "content": "Answer in one sentence."},
    {"role": "user", "content": [
      {"type": "text", "text": "What is in this picture?"},
      {"type": "image_url", "image_url": {"url": "https://example.com/cat.png"}}, /* trailing */
    ]},
  ]
}`,
}

func newAllocator() *secure.Allocator {
	return secure.NewAllocator(secure.WithMemory(&securetest.Memory{}))
}

func closeAll(messages []*message.Message) {
	for _, m := range messages {
		_ = m.Close()
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	for name, content := range documents {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			allocator := newAllocator()
			messages, err := Load(path, message.WithAllocator(allocator))
			require.NoError(t, err)
			defer closeAll(messages)

			encoded, err := json.Marshal(messages)
			require.NoError(t, err)
			assert.JSONEq(t, wantWire, string(encoded))
			assert.Equal(t, 5, allocator.Live())
		})
	}
}

func TestLoad_TableArrayContent(t *testing.T) {
	t.Parallel()

	data := []byte(`
[[messages]]
role = "user"

  [[messages.content]]
  type = "text"
  text = "first"

  [[messages.content]]
  type = "text"
  text = "second"
`)

	messages, err := Parse(data, FormatTOML, message.WithAllocator(newAllocator()))
	require.NoError(t, err)
	defer closeAll(messages)

	encoded, err := json.Marshal(messages[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":[{"type":"text","text":"first"},{"type":"text","text":"second"}]}`, string(encoded))
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		format Format
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unsupported part type",
			data:   `{"messages":[{"role":"user","content":"ok"},{"role":"user","content":[{"type":"audio"}]}]}`,
			format: FormatJSON,
			check: func(t *testing.T, err error) {
				var target *scerrors.UnsupportedContentTypeError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "audio", target.Type)
				assert.ErrorContains(t, err, "message 1")
			},
		},
		{
			name:   "missing role",
			data:   "messages:\n  - content: hi\n",
			format: FormatYAML,
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "message 0: missing role")
			},
		},
		{
			name:   "content is a number",
			data:   "[[messages]]\nrole = \"user\"\ncontent = 3\n",
			format: FormatTOML,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "content must be a string or a list of parts")
			},
		},
		{
			name:   "part is not a table",
			data:   `{"messages":[{"role":"user","content":["text"]}]}`,
			format: FormatJSON,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "content part 0 must be a table")
			},
		},
		{
			name:   "malformed toml",
			data:   "[[messages]\n",
			format: FormatTOML,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "error decoding TOML")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			allocator := newAllocator()
			messages, err := Parse([]byte(tt.data), tt.format, message.WithAllocator(allocator))
			assert.Nil(t, messages)
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, 0, allocator.Live())
		})
	}
}

func TestParse_NoContent(t *testing.T) {
	t.Parallel()

	messages, err := Parse([]byte("messages:\n  - role: user\n"), FormatYAML, message.WithAllocator(newAllocator()))
	require.NoError(t, err)
	defer closeAll(messages)

	encoded, err := json.Marshal(messages[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":[]}`, string(encoded))
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"chat.toml", FormatTOML, false},
		{"chat.YAML", FormatYAML, false},
		{"chat.yml", FormatYAML, false},
		{"chat.json", FormatJSON, false},
		{"chat.jsonc", FormatJSON, false},
		{"chat.txt", "", true},
		{"chat", "", true},
	}

	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if tt.wantErr {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
