package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFrameDecoderAnyChunkSplit(t *testing.T) {
	payload := "data: {\"type\":\"stage1_start\"}\ndata: {\"type\":\"complete\"}\n"
	want := []string{
		`data: {"type":"stage1_start"}`,
		`data: {"type":"complete"}`,
	}

	// Every possible two-chunk split must reassemble to the same lines.
	for split := 0; split <= len(payload); split++ {
		var dec frameDecoder
		var lines []string
		lines = append(lines, dec.Feed([]byte(payload[:split]))...)
		lines = append(lines, dec.Feed([]byte(payload[split:]))...)

		if len(lines) != len(want) {
			t.Fatalf("split %d: got %d lines, want %d", split, len(lines), len(want))
		}
		for i := range want {
			if lines[i] != want[i] {
				t.Fatalf("split %d: line %d = %q, want %q", split, i, lines[i], want[i])
			}
		}
		if dec.Rest() != "" {
			t.Fatalf("split %d: unexpected remainder %q", split, dec.Rest())
		}
	}
}

func TestFrameDecoderMidRuneSplit(t *testing.T) {
	// Multi-byte characters must survive a chunk boundary inside the rune.
	payload := "data: {\"type\":\"error\",\"message\":\"café 🌍 模型\"}\n"
	want := strings.TrimSuffix(payload, "\n")

	for split := 0; split <= len(payload); split++ {
		var dec frameDecoder
		var lines []string
		lines = append(lines, dec.Feed([]byte(payload[:split]))...)
		lines = append(lines, dec.Feed([]byte(payload[split:]))...)

		if len(lines) != 1 || lines[0] != want {
			t.Fatalf("split %d: got %q, want %q", split, lines, want)
		}
	}
}

func TestFrameDecoderCRLF(t *testing.T) {
	var dec frameDecoder
	lines := dec.Feed([]byte("data: {\"type\":\"complete\"}\r\n"))
	if len(lines) != 1 || lines[0] != `data: {"type":"complete"}` {
		t.Fatalf("got %q", lines)
	}
}

func TestFrameDecoderOneBytePerFeed(t *testing.T) {
	payload := []byte("data: {\"type\":\"stage2_start\"}\nrest")
	var dec frameDecoder
	var lines []string
	for i := 0; i < len(payload); i++ {
		lines = append(lines, dec.Feed(payload[i:i+1])...)
	}
	if len(lines) != 1 || lines[0] != `data: {"type":"stage2_start"}` {
		t.Fatalf("got %q", lines)
	}
	if dec.Rest() != "rest" {
		t.Fatalf("Rest() = %q, want %q", dec.Rest(), "rest")
	}
}

func TestFrameDecoderEmptyLines(t *testing.T) {
	var dec frameDecoder
	lines := dec.Feed([]byte("\n\ndata: {\"type\":\"complete\"}\n\n"))
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	if lines[0] != "" || lines[3] != "" {
		t.Fatalf("blank lines not preserved: %q", lines)
	}
}

func TestParseEventLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantOK   bool
		wantType string
	}{
		{"valid event", `data: {"type":"stage1_start"}`, true, "stage1_start"},
		{"valid with payload", `data: {"type":"stage3_complete","data":{"model":"m","response":"r"}}`, true, "stage3_complete"},
		{"error event", `data: {"type":"error","message":"boom"}`, true, "error"},
		{"empty line", "", false, ""},
		{"keepalive comment", ": ping", false, ""},
		{"no data prefix", `{"type":"complete"}`, false, ""},
		{"malformed json", `data: {not json`, false, ""},
		{"missing type", `data: {"data":[1,2]}`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := ParseEventLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && ev.Type != tt.wantType {
				t.Errorf("type = %q, want %q", ev.Type, tt.wantType)
			}
		})
	}
}

func TestStreamEventTerminal(t *testing.T) {
	tests := []struct {
		typ  string
		want bool
	}{
		{EventStage1Start, false},
		{EventStage3Complete, false},
		{EventTitleComplete, false},
		{EventComplete, true},
		{EventError, true},
	}
	for _, tt := range tests {
		ev := &StreamEvent{Type: tt.typ}
		if ev.Terminal() != tt.want {
			t.Errorf("Terminal(%q) = %v, want %v", tt.typ, ev.Terminal(), tt.want)
		}
	}
}

func streamHandler(t *testing.T, wantPath string, frames []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		if r.Method != "POST" {
			t.Errorf("method = %q, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl, _ := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			if fl != nil {
				fl.Flush()
			}
		}
	}
}

func TestSendMessageStreamDeliversEvents(t *testing.T) {
	frames := []string{
		"data: {\"type\":\"stage1_start\"}\n",
		// A frame split across two writes.
		"data: {\"type\":\"stage1_comp",
		"lete\",\"data\":[{\"model\":\"openai/gpt-5.1\",\"response\":\"hi\"}]}\n",
		"data: {\"type\":\"complete\"}\n",
	}
	srv := httptest.NewServer(streamHandler(t, "/api/conversations/c1/message/stream", frames))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	var got []string
	err := client.SendMessageStream(context.Background(), "c1", "hello", func(ev *StreamEvent) {
		got = append(got, ev.Type)
	})
	if err != nil {
		t.Fatalf("SendMessageStream: %v", err)
	}

	want := []string{"stage1_start", "stage1_complete", "complete"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSendMessageStreamStopsAfterTerminal(t *testing.T) {
	frames := []string{
		"data: {\"type\":\"complete\"}\n",
		"data: {\"type\":\"stage1_start\"}\n", // after terminal: must not be delivered
	}
	srv := httptest.NewServer(streamHandler(t, "/api/conversations/c1/message/stream", frames))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	var got []string
	err := client.SendMessageStream(context.Background(), "c1", "q", func(ev *StreamEvent) {
		got = append(got, ev.Type)
	})
	if err != nil {
		t.Fatalf("SendMessageStream: %v", err)
	}
	if len(got) != 1 || got[0] != "complete" {
		t.Fatalf("got %v, want just complete", got)
	}
}

func TestSendMessageStreamFlushesUnterminatedFinalFrame(t *testing.T) {
	// Final frame without a trailing newline still counts if it parses.
	frames := []string{
		"data: {\"type\":\"stage1_start\"}\n",
		"data: {\"type\":\"title_complete\",\"data\":{\"title\":\"T\"}}",
	}
	srv := httptest.NewServer(streamHandler(t, "/api/conversations/c1/message/stream", frames))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	var got []string
	err := client.SendMessageStream(context.Background(), "c1", "q", func(ev *StreamEvent) {
		got = append(got, ev.Type)
	})
	if err != nil {
		t.Fatalf("SendMessageStream: %v", err)
	}
	if len(got) != 2 || got[1] != "title_complete" {
		t.Fatalf("got %v, want [stage1_start title_complete]", got)
	}
}

func TestSendMessageStreamSkipsMalformedFrames(t *testing.T) {
	frames := []string{
		"data: {broken\n",
		": keepalive\n",
		"data: {\"type\":\"complete\"}\n",
	}
	srv := httptest.NewServer(streamHandler(t, "/api/conversations/c1/message/stream", frames))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	var got []string
	err := client.SendMessageStream(context.Background(), "c1", "q", func(ev *StreamEvent) {
		got = append(got, ev.Type)
	})
	if err != nil {
		t.Fatalf("SendMessageStream: %v", err)
	}
	if len(got) != 1 || got[0] != "complete" {
		t.Fatalf("got %v, want just complete", got)
	}
}

func TestSendMessageStreamUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "stale")
	called := false
	err := client.SendMessageStream(context.Background(), "c1", "q", func(ev *StreamEvent) {
		called = true
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if called {
		t.Error("callback fired on a failed request")
	}
}

func TestSendMessageStreamServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"detail":"model provider is down"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	err := client.SendMessageStream(context.Background(), "c1", "q", func(ev *StreamEvent) {})
	if err == nil || !strings.Contains(err.Error(), "model provider is down") {
		t.Fatalf("err = %v, want detail surfaced", err)
	}
}

func TestSendMessageStreamContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"stage1_start\"}\n")
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		<-release // hold the stream open until the client gives up
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(srv.URL, "tok")
	err := client.SendMessageStream(ctx, "c1", "q", func(ev *StreamEvent) {
		cancel()
	})
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
