package cli

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"emart_admin/internal/insights"

	openrouter "github.com/revrost/go-openrouter"
	"go.uber.org/zap"
)

func (r *Runner) runAsk(ctx context.Context, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question != "" {
		return r.ask(ctx, question, nil)
	}
	return r.askREPL(ctx)
}

func (r *Runner) ask(ctx context.Context, question string, history *insights.History) error {
	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	answer, err := r.insights.Ask(ctx, s, question, history)
	if err != nil && !errors.Is(err, insights.ErrTooManyRounds) {
		return err
	}
	r.logger.Info("answer",
		zap.String("question", question),
		zap.Int("tool_calls", len(answer.ToolCalls)),
		zap.Error(err),
	)

	if r.options.JSON {
		return r.writeJSON(answer)
	}
	if errors.Is(err, insights.ErrTooManyRounds) {
		r.println("The assistant gave up after too many lookups. Try a narrower question.")
		return nil
	}
	text := answer.Text
	if text == "" {
		text = "(empty response)"
	}
	r.printf("%s\n", text)
	return nil
}

func (r *Runner) askREPL(ctx context.Context) error {
	reader := bufio.NewScanner(r.in)
	history := insights.NewHistory(0, 0, r.logger)
	r.println("eMart assistant (type 'exit' to quit, '/clear' to forget, '/history' to review)")

	for {
		r.printf("> ")
		if !reader.Scan() {
			return reader.Err()
		}

		line := strings.TrimSpace(reader.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "/clear":
			history.Clear()
			r.println("History cleared.")
			continue
		case "/history":
			r.printHistory(history)
			continue
		case "exit", "quit":
			return nil
		}

		if err := r.ask(ctx, line, history); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.printf("! %s\n", friendlyError(err))
		}
	}
}

func (r *Runner) printHistory(history *insights.History) {
	messages := history.Messages()
	if len(messages) == 0 {
		r.println("History is empty.")
		return
	}
	r.printf("History (%d messages, ~%d tokens):\n", len(messages), history.TokenCount())
	for i, msg := range messages {
		preview := messagePreview(msg)
		if preview == "" {
			preview = "(empty)"
		}
		r.printf("%d) %s: %s\n", i+1, msg.Role, preview)
	}
}

func messagePreview(msg openrouter.ChatCompletionMessage) string {
	text := strings.TrimSpace(msg.Content.Text)
	if text == "" {
		for _, part := range msg.Content.Multi {
			if t := strings.TrimSpace(part.Text); t != "" {
				text = t
				break
			}
		}
	}
	const maxLen = 120
	if runes := []rune(text); len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return text
}
