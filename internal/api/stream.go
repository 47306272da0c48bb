package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// frameDecoder turns an arbitrary sequence of byte chunks into complete
// lines. Splits are byte-accurate: a newline or a multi-byte character
// falling across two chunks is reassembled, never corrupted. Only the
// caller decides what to do with an unterminated trailing line.
type frameDecoder struct {
	buf []byte
}

// Feed appends a chunk and returns every complete line it closed off,
// without trailing newlines. Carriage returns before the newline are
// stripped so CRLF streams decode the same as LF streams.
func (d *frameDecoder) Feed(p []byte) []string {
	d.buf = append(d.buf, p...)

	var lines []string
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		lines = append(lines, string(line))
		d.buf = d.buf[i+1:]
	}
	return lines
}

// Rest returns the buffered unterminated remainder.
func (d *frameDecoder) Rest() string {
	return string(d.buf)
}

// StreamCallback receives each parsed event in arrival order.
type StreamCallback func(ev *StreamEvent)

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageStream posts a user message and consumes the SSE response,
// invoking cb once per well-formed event. It returns after a terminal
// event (complete/error), on EOF, or when ctx is cancelled. Failures before
// the first byte — transport errors, non-2xx, 401 — are returned without
// any callback having fired.
func (c *Client) SendMessageStream(ctx context.Context, conversationID, content string, cb StreamCallback) error {
	body, err := json.Marshal(sendMessageRequest{Content: content})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/api/conversations/"+conversationID+"/message/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	// Streaming responses must not be cut off by the client-wide timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, errDetail(errBody))
	}

	dec := &frameDecoder{}
	chunk := make([]byte, 32*1024)

	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			for _, line := range dec.Feed(chunk[:n]) {
				ev, ok := ParseEventLine(line)
				if !ok {
					continue
				}
				cb(ev)
				if ev.Terminal() {
					return nil
				}
			}
		}
		if readErr == io.EOF {
			// A final event the server did not newline-terminate still
			// counts if it parses whole.
			if rest := strings.TrimSpace(dec.Rest()); rest != "" {
				if ev, ok := ParseEventLine(rest); ok {
					cb(ev)
				}
			}
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading stream: %w", readErr)
		}
	}
}
