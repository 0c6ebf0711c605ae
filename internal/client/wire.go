package client

import (
	"github.com/longkey1/securechat/internal/message"
)

// chatRequest is the chat-completions request body.
type chatRequest struct {
	Messages []message.WireMessage `json:"messages"`
	Model    string                `json:"model"`
}

// chatResponse is the part of a chat-completions response that is read.
// Choices is a pointer so an absent field can be told apart from an
// empty list.
type chatResponse struct {
	Choices *[]chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatReply `json:"message"`
}

type chatReply struct {
	Content *string `json:"content"`
}
