package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"emart_admin/internal/auth"

	"go.uber.org/zap"
)

// EventNewOrder is pushed when an order is placed.
const EventNewOrder = "new_order"

// Event is one server-sent message. Type comes from the JSON "type" field,
// falling back to the SSE event name.
type Event struct {
	Type string
	Data json.RawMessage
}

// StreamEvents holds the event stream open and calls handle for every
// message. It returns when the server closes the stream or ctx is done.
func (c *Client) StreamEvents(ctx context.Context, session auth.Session, handle func(Event)) error {
	token, err := session.Bearer()
	if err != nil {
		return err
	}

	resp, err := c.stream.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetDoNotParseResponse(true).
		Get(c.eventsPath)
	if err != nil {
		return fmt.Errorf("emart event stream: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(body, 4096))
		return apiErrorFromResponse(resp.StatusCode(), resp.Status(), string(raw))
	}

	c.logger.Info("event stream connected", zap.String("path", c.eventsPath))
	err = readEvents(body, func(ev Event) {
		c.metrics.StreamEvent(ev.Type)
		handle(ev)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// readEvents parses an SSE body. Multi-line data fields are joined with
// newlines; comment lines are skipped.
func readEvents(r io.Reader, handle func(Event)) error {
	reader := bufio.NewReader(r)
	var (
		name string
		data strings.Builder
	)

	dispatch := func() {
		if data.Len() == 0 {
			name = ""
			return
		}
		handle(newEvent(name, data.String()))
		name = ""
		data.Reset()
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading event stream: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if eof {
			dispatch()
			return nil
		}
	}
}

func newEvent(name, data string) Event {
	ev := Event{Type: name, Data: json.RawMessage(data)}

	var probe struct {
		Type string `json:"type"`
	}
	if json.Unmarshal([]byte(data), &probe) == nil && probe.Type != "" {
		ev.Type = probe.Type
	}
	if ev.Type == "" {
		ev.Type = "message"
	}
	if !json.Valid(ev.Data) {
		quoted, _ := json.Marshal(data)
		ev.Data = quoted
	}
	return ev
}
