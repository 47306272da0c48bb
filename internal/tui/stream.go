package tui

import (
	"context"

	"council-cli/internal/api"

	tea "github.com/charmbracelet/bubbletea"
)

// ─── Messages sent from stream goroutine to Bubble Tea ──────────────────────

type streamEventMsg struct {
	turnID string
	ev     *api.StreamEvent
}

type streamDoneMsg struct {
	turnID string
}

type streamErrMsg struct {
	turnID string
	err    error
}

// ─── Stream command ─────────────────────────────────────────────────────────
//
// Launches the message stream in a goroutine, forwards every protocol event
// through a channel, and returns a tea.Cmd that keeps reading from that
// channel until the stream ends. The model's Update dispatches another
// waitForStream after each event.

var activeStreamCh chan tea.Msg

func beginStream(ctx context.Context, client api.CouncilAPI, turnID, conversationID, content string) tea.Cmd {
	ch := make(chan tea.Msg, 64)
	activeStreamCh = ch

	go func() {
		defer close(ch)

		err := client.SendMessageStream(ctx, conversationID, content, func(ev *api.StreamEvent) {
			ch <- streamEventMsg{turnID: turnID, ev: ev}
		})
		if err != nil {
			ch <- streamErrMsg{turnID: turnID, err: err}
			return
		}
		ch <- streamDoneMsg{turnID: turnID}
	}()

	return waitForStream(ch)
}

// waitForStream reads the next message from the channel.
func waitForStream(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return streamDoneMsg{}
		}
		return msg
	}
}
