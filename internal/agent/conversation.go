package agent

import "github.com/MrWong99/quill/pkg/provider/llm"

// Conversation is the ordered message history replayed to the model on every
// request. It is append-only for the lifetime of one process run and owned
// exclusively by the [Loop] that created it — there is no process-wide
// conversation state. Nothing is persisted; the history is discarded at exit.
type Conversation struct {
	messages []llm.Message
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds msg to the end of the history. Messages are never mutated or
// removed once appended.
func (c *Conversation) Append(msg llm.Message) {
	c.messages = append(c.messages, msg)
}

// Messages returns the history in insertion order. The returned slice is
// shared with the conversation; callers must not modify it.
func (c *Conversation) Messages() []llm.Message {
	return c.messages
}

// Len returns the number of messages appended so far.
func (c *Conversation) Len() int {
	return len(c.messages)
}
