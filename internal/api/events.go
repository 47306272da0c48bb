package api

import (
	"encoding/json"
	"log/slog"
	"strings"

	"council-cli/internal/council"
)

// Stream event types emitted by the message/stream endpoint, in protocol
// order. Stage N's start/complete pair always arrives before stage N+1's.
const (
	EventStage1Start    = "stage1_start"
	EventStage1Complete = "stage1_complete"
	EventStage2Start    = "stage2_start"
	EventStage2Complete = "stage2_complete"
	EventStage3Start    = "stage3_start"
	EventStage3Complete = "stage3_complete"
	EventTitleComplete  = "title_complete"
	EventComplete       = "complete"
	EventError          = "error"
)

// StreamEvent is one parsed protocol event. Data and Metadata stay raw until
// a typed accessor is called, so unknown event types pass through untouched.
type StreamEvent struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Terminal reports whether this event ends the stream.
func (e *StreamEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

func (e *StreamEvent) Stage1Data() ([]council.Stage1Response, error) {
	var out []council.Stage1Response
	err := json.Unmarshal(e.Data, &out)
	return out, err
}

func (e *StreamEvent) Stage2Data() ([]council.Stage2Ranking, error) {
	var out []council.Stage2Ranking
	err := json.Unmarshal(e.Data, &out)
	return out, err
}

func (e *StreamEvent) Stage3Data() (*council.Stage3Response, error) {
	var out council.Stage3Response
	if err := json.Unmarshal(e.Data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *StreamEvent) MetadataData() (*council.Metadata, error) {
	var out council.Metadata
	if err := json.Unmarshal(e.Metadata, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// dataPrefix marks SSE data frames. Lines without it (keepalives, comments)
// are ignored.
const dataPrefix = "data: "

// ParseEventLine turns one decoded line into a StreamEvent. Returns false
// for non-data lines and for data lines whose payload does not parse;
// malformed frames are logged and skipped, never fatal.
func ParseEventLine(line string) (*StreamEvent, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	payload := line[len(dataPrefix):]

	var ev StreamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Warn("skipping malformed stream frame", "error", err, "len", len(payload))
		return nil, false
	}
	if ev.Type == "" {
		slog.Warn("skipping stream frame without type")
		return nil, false
	}
	return &ev, true
}
