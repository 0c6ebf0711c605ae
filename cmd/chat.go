/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/longkey1/securechat/internal/client"
	"github.com/longkey1/securechat/internal/config"
	"github.com/longkey1/securechat/internal/conversation"
	"github.com/longkey1/securechat/internal/message"
	"github.com/longkey1/securechat/internal/metrics"
	"github.com/longkey1/securechat/internal/secure"
)

var (
	model            string
	systemPrompt     string
	imageURLs        []string
	conversationFile string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to the LLM",
	Long: `Send a message to the LLM and print the response.
This command performs a one-time API call to the configured chat completions endpoint.

If no message is provided as an argument, it reads from stdin.
Images are attached by URL with --image-url, which may be repeated.

A whole conversation can be loaded from a TOML, YAML or JSON file with
--conversation; a message given as an argument is appended to it as the
last user turn.

Examples:
  securechat chat "Explain mlock in one sentence"
  securechat chat --system "Answer in French" "What is swap?"
  securechat chat --image-url https://example.com/cat.png "What is in this picture?"
  securechat chat --conversation chat.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration from file
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		registry := prometheus.NewRegistry()
		m, err := metrics.New(registry)
		if err != nil {
			return fmt.Errorf("creating metrics: %w", err)
		}
		if verbose {
			defer logMetrics(registry)
		}

		allocator := secure.NewAllocator(
			secure.WithLockPolicy(cfg.Policy()),
			secure.WithLogger(logger),
			secure.WithMetrics(m),
		)
		secure.SetDefault(allocator)

		baseURL, apiKey, err := cfg.OpenCredentials(allocator)
		if err != nil {
			return err
		}
		c := client.NewWithBuffers(baseURL, apiKey,
			client.WithLogger(logger),
			client.WithAllocator(allocator),
			client.WithMetrics(m),
		)
		defer c.Close()

		messages, err := buildMessages(args, allocator)
		if err != nil {
			return err
		}
		defer closeMessages(messages)

		modelName := cfg.Model
		if model != "" {
			modelName = model
		}

		reply, err := c.ChatCompletion(cmd.Context(), messages, modelName)
		if err != nil {
			return err
		}
		defer reply.Close()

		out := cmd.OutOrStdout()
		if _, err := reply.WriteTo(out); err != nil {
			return fmt.Errorf("writing reply: %w", err)
		}
		fmt.Fprintln(out)
		return nil
	},
}

// buildMessages assembles the system prompt, the conversation file and
// the user turn, in that order. On error nothing stays allocated.
func buildMessages(args []string, allocator *secure.Allocator) (messages []*message.Message, err error) {
	defer func() {
		if err != nil {
			closeMessages(messages)
			messages = nil
		}
	}()

	opts := []message.Option{message.WithAllocator(allocator)}

	if systemPrompt != "" {
		msg, err := message.Build([]byte("system"), []message.Description{{"type": "text", "text": systemPrompt}}, opts...)
		if err != nil {
			return messages, fmt.Errorf("system prompt: %w", err)
		}
		messages = append(messages, msg)
	}

	if conversationFile != "" {
		loaded, err := conversation.Load(conversationFile, opts...)
		if err != nil {
			return messages, err
		}
		messages = append(messages, loaded...)
	}

	text, err := userText(args)
	if err != nil {
		return messages, err
	}
	defer secure.Wipe(text)

	if len(text) == 0 && len(imageURLs) == 0 {
		if conversationFile != "" {
			return messages, nil
		}
		return messages, fmt.Errorf("no message provided")
	}

	msg, err := message.Build([]byte("user"), userDescriptions(text, imageURLs), opts...)
	if err != nil {
		return messages, fmt.Errorf("user message: %w", err)
	}
	return append(messages, msg), nil
}

// userText returns the message from args, or from stdin when there are no
// args and no conversation file.
func userText(args []string) ([]byte, error) {
	if len(args) > 0 {
		return []byte(strings.Join(args, " ")), nil
	}
	if conversationFile != "" {
		return nil, nil
	}

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		secure.Wipe(input)
		return nil, fmt.Errorf("reading from stdin: %w", err)
	}
	trimmed := bytes.TrimSpace(input)
	out := bytes.Clone(trimmed)
	secure.Wipe(input)
	return out, nil
}

func userDescriptions(text []byte, urls []string) []message.Description {
	var descriptions []message.Description
	if len(text) > 0 {
		descriptions = append(descriptions, message.Description{"type": "text", "text": text})
	}
	for _, url := range urls {
		descriptions = append(descriptions, message.Description{
			"type":      "image_url",
			"image_url": map[string]any{"url": url},
		})
	}
	return descriptions
}

func closeMessages(messages []*message.Message) {
	for _, m := range messages {
		_ = m.Close()
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (overrides config)")
	chatCmd.Flags().StringVarP(&systemPrompt, "system", "s", "", "System prompt")
	chatCmd.Flags().StringArrayVar(&imageURLs, "image-url", nil, "Attach an image by URL (repeatable)")
	chatCmd.Flags().StringVarP(&conversationFile, "conversation", "c", "", "Load messages from a TOML, YAML or JSON file")
}
