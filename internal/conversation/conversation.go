// Package conversation reads a list of chat messages from a TOML, YAML
// or JSON (with comments) file and builds them into secure messages.
//
// A file holds a "messages" list. Each entry has a role and a content
// that is either a string, taken as a single text part, or a list of
// content-part records:
//
//	[[messages]]
//	role = "system"
//	content = "Answer in one sentence."
//
//	[[messages]]
//	role = "user"
//	content = [
//	  { type = "text", text = "What is in this picture?" },
//	  { type = "image_url", image_url = { url = "https://example.com/cat.png" } },
//	]
package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/longkey1/securechat/internal/message"
	"github.com/longkey1/securechat/internal/secure"
)

// Format is a conversation file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported conversation file extension: %q (expected .toml, .yaml, .yml, .json or .jsonc)", filepath.Ext(path))
	}
}

type document struct {
	Messages []entry `toml:"messages" yaml:"messages" json:"messages"`
}

type entry struct {
	Role    string `toml:"role" yaml:"role" json:"role"`
	Content any    `toml:"content" yaml:"content" json:"content"`
}

// Load reads and builds the conversation at path. The raw file bytes are
// wiped once decoded.
func Load(path string, opts ...message.Option) ([]*message.Message, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading conversation file: %w", err)
	}
	defer secure.Wipe(data)

	messages, err := Parse(data, format, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return messages, nil
}

// Parse decodes data and builds one message per entry. It is
// all-or-nothing: on error every message built so far is closed.
func Parse(data []byte, format Format, opts ...message.Option) ([]*message.Message, error) {
	var doc document
	if err := decode(data, format, &doc); err != nil {
		return nil, err
	}

	messages := make([]*message.Message, 0, len(doc.Messages))
	for i, e := range doc.Messages {
		msg, err := build(e, opts)
		if err != nil {
			for _, m := range messages {
				_ = m.Close()
			}
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decode(data []byte, format Format, doc *document) error {
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), doc); err != nil {
			return fmt.Errorf("error decoding TOML: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, doc); err != nil {
			return fmt.Errorf("error decoding YAML: %w", err)
		}
	case FormatJSON:
		plain := jsonc.ToJSON(data)
		defer secure.Wipe(plain)
		if err := json.Unmarshal(plain, doc); err != nil {
			return fmt.Errorf("error decoding JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported conversation format: %s", format)
	}
	return nil
}

func build(e entry, opts []message.Option) (*message.Message, error) {
	if e.Role == "" {
		return nil, fmt.Errorf("missing role")
	}

	descriptions, err := descriptionsOf(e.Content)
	if err != nil {
		return nil, err
	}
	return message.Build([]byte(e.Role), descriptions, opts...)
}

// descriptionsOf normalizes the decoded content into content-part
// records. Each decoder produces slightly different container types.
func descriptionsOf(content any) ([]message.Description, error) {
	switch v := content.(type) {
	case nil:
		return nil, nil
	case string:
		return []message.Description{{"type": string(message.KindText), "text": v}}, nil
	case []map[string]any:
		return v, nil
	case []any:
		descriptions := make([]message.Description, 0, len(v))
		for i, item := range v {
			record, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("content part %d must be a table, got %T", i, item)
			}
			descriptions = append(descriptions, record)
		}
		return descriptions, nil
	default:
		return nil, fmt.Errorf("content must be a string or a list of parts, got %T", content)
	}
}
