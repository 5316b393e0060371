package insights

import (
	"strings"

	openrouter "github.com/revrost/go-openrouter"
	"go.uber.org/zap"
)

const (
	defaultHistoryMaxMessages = 20
	defaultHistoryMaxTokens   = 2000
)

// History keeps the rolling conversation of an interactive assistant session.
// The leading system message survives trimming.
type History struct {
	messages    []openrouter.ChatCompletionMessage
	maxMessages int
	maxTokens   int
	logger      *zap.Logger
}

func NewHistory(maxMessages, maxTokens int, logger *zap.Logger) *History {
	if maxMessages <= 0 {
		maxMessages = defaultHistoryMaxMessages
	}
	if maxTokens <= 0 {
		maxTokens = defaultHistoryMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{
		maxMessages: maxMessages,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

func (h *History) Append(message openrouter.ChatCompletionMessage) {
	h.messages = append(h.messages, message)
	h.enforceLimits()
}

func (h *History) Messages() []openrouter.ChatCompletionMessage {
	if len(h.messages) == 0 {
		return nil
	}
	out := make([]openrouter.ChatCompletionMessage, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	return len(h.messages)
}

func (h *History) Clear() {
	h.messages = nil
}

func (h *History) TokenCount() int {
	return estimateTokens(h.messages)
}

func (h *History) enforceLimits() {
	trimmed := false
	if len(h.messages) > h.maxMessages {
		h.messages = trimByCount(h.messages, h.maxMessages)
		trimmed = true
	}
	for len(h.messages) > 1 && estimateTokens(h.messages) > h.maxTokens {
		h.messages = trimOldestNonSystem(h.messages)
		trimmed = true
	}

	if trimmed {
		h.logger.Debug("assistant history trimmed",
			zap.Int("messages", len(h.messages)),
			zap.Int("tokens", estimateTokens(h.messages)),
		)
	}
}

func trimByCount(messages []openrouter.ChatCompletionMessage, limit int) []openrouter.ChatCompletionMessage {
	if len(messages) <= limit {
		return messages
	}
	if messages[0].Role != openrouter.ChatMessageRoleSystem {
		return messages[len(messages)-limit:]
	}
	if limit <= 1 {
		return messages[:1]
	}
	trimmed := make([]openrouter.ChatCompletionMessage, 0, limit)
	trimmed = append(trimmed, messages[0])
	return append(trimmed, messages[len(messages)-(limit-1):]...)
}

func trimOldestNonSystem(messages []openrouter.ChatCompletionMessage) []openrouter.ChatCompletionMessage {
	if len(messages) == 0 {
		return nil
	}
	if messages[0].Role != openrouter.ChatMessageRoleSystem {
		return messages[1:]
	}
	if len(messages) <= 1 {
		return messages
	}
	return append(messages[:1:1], messages[2:]...)
}

func estimateTokens(messages []openrouter.ChatCompletionMessage) int {
	total := 0
	for _, msg := range messages {
		text := msg.Content.Text
		if text == "" {
			for _, part := range msg.Content.Multi {
				text += " " + part.Text
			}
		}
		total += len(strings.Fields(text))
	}
	return total
}
