package session

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"council-cli/internal/api"
	"council-cli/internal/council"
)

var (
	// ErrEmptyMessage rejects blank submissions before anything is mutated.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrTurnInFlight rejects reentrant submission while a turn is streaming.
	ErrTurnInFlight = errors.New("a message is already being processed")
	// ErrNoConversation rejects submission with no open conversation.
	ErrNoConversation = errors.New("no conversation is open")
)

// Turn is the state of one user → assistant exchange. The ID tags every
// stream event back to the submission that produced it, and ConversationID
// lets late events from an abandoned stream be dropped instead of being
// misapplied to a newly opened conversation.
type Turn struct {
	ID             string
	ConversationID string
	Content        string

	Sending bool
	ErrMsg  string // server-sent error message, if any

	// cursor is the index of this turn's assistant placeholder. Stage
	// handlers address the message through it, not by last-element
	// convention.
	cursor int
	// prior is the conversation value as it stood before the optimistic
	// append. Store values are copy-on-write, so holding the pointer is a
	// free snapshot; rollback restores it wholesale.
	prior *council.Conversation

	stage1Done bool
	stage2Done bool
	stage3Done bool
}

// Committed reports whether any stage result has been applied. A turn with
// committed work is never rolled back; the partial result stands.
func (t *Turn) Committed() bool {
	return t.stage1Done || t.stage2Done || t.stage3Done
}

// Runner is the per-turn state machine. It is the only writer of the Store
// during streaming: every stream event becomes a structural update on the
// turn's assistant message, addressed through the cursor recorded at
// submission.
type Runner struct {
	store *Store
	turn  *Turn

	// reloadSummaries re-fetches the conversation list from the server.
	// The server owns derived fields (title, message_count); the client
	// never computes them locally.
	reloadSummaries func()
}

func NewRunner(store *Store, reloadSummaries func()) *Runner {
	if reloadSummaries == nil {
		reloadSummaries = func() {}
	}
	return &Runner{store: store, reloadSummaries: reloadSummaries}
}

// InFlight reports whether a turn is currently streaming.
func (r *Runner) InFlight() bool {
	return r.turn != nil && r.turn.Sending
}

// Turn returns the active turn, or nil.
func (r *Runner) Turn() *Turn {
	return r.turn
}

// Begin validates the submission and optimistically appends the user message
// and the assistant placeholder. Both messages exist before any stage event
// is processed. The caller then runs SendMessageStream and feeds events back
// through Apply, or reports failure through Fail.
func (r *Runner) Begin(content string) (*Turn, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if r.InFlight() {
		return nil, ErrTurnInFlight
	}
	conv := r.store.Conversation()
	if conv == nil {
		return nil, ErrNoConversation
	}

	r.store.AppendMessage(council.NewUserMessage(content))
	r.store.AppendMessage(council.NewAssistantPlaceholder())

	r.turn = &Turn{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Content:        content,
		Sending:        true,
		cursor:         len(conv.Messages) + 1,
		prior:          conv,
	}
	return r.turn, nil
}

// Apply dispatches one stream event as a state transition. Events are
// applied strictly in arrival order; the server guarantees stageN_start
// precedes stageN_complete and stages arrive in order, so no buffering or
// reordering happens here. Returns false when the event was dropped
// (stale turn, duplicate completion, unknown type).
func (r *Runner) Apply(turnID string, ev *api.StreamEvent) bool {
	t := r.turn
	if t == nil || t.ID != turnID || !t.Sending {
		// A closed turn never reopens: events still buffered when the
		// turn failed or was cancelled must not touch its message.
		slog.Debug("dropping event for finished turn", "type", ev.Type)
		return false
	}
	conv := r.store.Conversation()
	if conv == nil || conv.ID != t.ConversationID {
		// The user opened another conversation mid-stream. The late event
		// must not touch the new conversation's log.
		slog.Debug("dropping event for stale conversation", "type", ev.Type, "turn", t.ID)
		return false
	}

	switch ev.Type {
	case api.EventStage1Start:
		if t.stage1Done {
			return false
		}
		r.setLoading(func(l *council.StageLoading) { l.Stage1 = true })

	case api.EventStage1Complete:
		if t.stage1Done {
			slog.Warn("duplicate stage1_complete ignored", "turn", t.ID)
			return false
		}
		data, err := ev.Stage1Data()
		if err != nil {
			slog.Warn("undecodable stage1 payload", "error", err)
			return false
		}
		t.stage1Done = true
		r.store.PatchMessage(t.cursor, func(m council.Message) council.Message {
			m.Stage1 = data
			m.Loading = loadingWith(m.Loading, func(l *council.StageLoading) { l.Stage1 = false })
			return m
		})

	case api.EventStage2Start:
		if t.stage2Done {
			return false
		}
		r.setLoading(func(l *council.StageLoading) { l.Stage2 = true })

	case api.EventStage2Complete:
		if t.stage2Done {
			slog.Warn("duplicate stage2_complete ignored", "turn", t.ID)
			return false
		}
		data, err := ev.Stage2Data()
		if err != nil {
			slog.Warn("undecodable stage2 payload", "error", err)
			return false
		}
		meta, err := ev.MetadataData()
		if err != nil {
			slog.Warn("undecodable stage2 metadata", "error", err)
			meta = nil
		}
		t.stage2Done = true
		r.store.PatchMessage(t.cursor, func(m council.Message) council.Message {
			m.Stage2 = data
			m.Metadata = meta
			m.Loading = loadingWith(m.Loading, func(l *council.StageLoading) { l.Stage2 = false })
			return m
		})

	case api.EventStage3Start:
		if t.stage3Done {
			return false
		}
		r.setLoading(func(l *council.StageLoading) { l.Stage3 = true })

	case api.EventStage3Complete:
		if t.stage3Done {
			slog.Warn("duplicate stage3_complete ignored", "turn", t.ID)
			return false
		}
		data, err := ev.Stage3Data()
		if err != nil {
			slog.Warn("undecodable stage3 payload", "error", err)
			return false
		}
		t.stage3Done = true
		r.store.PatchMessage(t.cursor, func(m council.Message) council.Message {
			m.Stage3 = data
			m.Loading = loadingWith(m.Loading, func(l *council.StageLoading) { l.Stage3 = false })
			return m
		})

	case api.EventTitleComplete:
		// The server derived a title out-of-band; re-fetch rather than
		// parsing it out of the event.
		r.reloadSummaries()

	case api.EventComplete:
		r.reloadSummaries()
		r.finish()

	case api.EventError:
		// Stage results already applied represent real completed work and
		// stay visible. Only the in-flight flag is cleared.
		t.ErrMsg = ev.Message
		r.finish()

	default:
		slog.Debug("ignoring unknown stream event type", "type", ev.Type)
		return false
	}
	return true
}

// Fail handles a turn that died outside the event protocol: the request
// never got through, the stream broke mid-read, or it was cancelled. If no
// stage result was committed the turn's optimistic pair is discarded by
// restoring the pre-submission conversation value, so the log looks exactly
// as it did before submission. Returns true when a rollback happened.
func (r *Runner) Fail(turnID string, err error) bool {
	t := r.turn
	if t == nil || t.ID != turnID || !t.Sending {
		return false
	}
	if err != nil {
		t.ErrMsg = err.Error()
	}

	rolledBack := false
	conv := r.store.Conversation()
	if conv != nil && conv.ID == t.ConversationID && !t.Committed() {
		r.store.SetConversation(t.prior)
		rolledBack = true
	}
	r.finish()
	return rolledBack
}

// finish closes the turn: the placeholder stops being "loading" and
// submission is unblocked.
func (r *Runner) finish() {
	t := r.turn
	if t == nil {
		return
	}
	t.Sending = false
	conv := r.store.Conversation()
	if conv == nil || conv.ID != t.ConversationID || t.cursor >= len(conv.Messages) {
		return
	}
	if conv.Messages[t.cursor].Loading != nil {
		r.store.PatchMessage(t.cursor, func(m council.Message) council.Message {
			m.Loading = nil
			return m
		})
	}
}

func (r *Runner) setLoading(set func(*council.StageLoading)) {
	r.store.PatchMessage(r.turn.cursor, func(m council.Message) council.Message {
		m.Loading = loadingWith(m.Loading, set)
		return m
	})
}

// loadingWith copies the loading flags and applies one change, keeping the
// patch structural.
func loadingWith(l *council.StageLoading, set func(*council.StageLoading)) *council.StageLoading {
	next := council.StageLoading{}
	if l != nil {
		next = *l
	}
	set(&next)
	return &next
}
