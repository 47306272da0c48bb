// Package session owns the client-side conversation state: the reactive
// Store read by presentation code, and the Runner that drives one streaming
// turn through its lifecycle.
package session

import "council-cli/internal/council"

// Store holds the conversation summary list and the currently open
// conversation. All mutations build fresh values instead of editing in
// place, so observers can compare pointers to detect change. The runtime
// model is single-goroutine (Bubble Tea's update loop or a plain command
// path), so the Store does no locking of its own.
type Store struct {
	summaries    []council.ConversationMetadata
	conversation *council.Conversation
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Summaries() []council.ConversationMetadata {
	return s.summaries
}

// Conversation returns the open conversation, or nil when none is open.
func (s *Store) Conversation() *council.Conversation {
	return s.conversation
}

func (s *Store) SetSummaries(list []council.ConversationMetadata) {
	s.summaries = list
}

// SetConversation replaces the open conversation, discarding whatever was
// open before. Selecting nil closes without opening another.
func (s *Store) SetConversation(c *council.Conversation) {
	s.conversation = c
}

// Reset discards all local state. Used on logout.
func (s *Store) Reset() {
	s.summaries = nil
	s.conversation = nil
}

// AppendMessage adds a message to the open conversation.
func (s *Store) AppendMessage(msg council.Message) {
	if s.conversation == nil {
		return
	}
	next := *s.conversation
	next.Messages = append(append([]council.Message{}, s.conversation.Messages...), msg)
	s.conversation = &next
}

// PatchMessage replaces the message at index i with fn(current). The Runner
// addresses the in-flight assistant message through the cursor it recorded
// at turn start, never by "last element" convention.
func (s *Store) PatchMessage(i int, fn func(council.Message) council.Message) {
	if s.conversation == nil || i < 0 || i >= len(s.conversation.Messages) {
		return
	}
	next := *s.conversation
	next.Messages = append([]council.Message{}, s.conversation.Messages...)
	next.Messages[i] = fn(next.Messages[i])
	s.conversation = &next
}

// AddPdfContext attaches an uploaded PDF to the open conversation. Duplicate
// ids are ignored.
func (s *Store) AddPdfContext(p council.PdfContext) {
	if s.conversation == nil {
		return
	}
	for _, existing := range s.conversation.PdfContexts {
		if existing.ID == p.ID {
			return
		}
	}
	next := *s.conversation
	next.PdfContexts = append(append([]council.PdfContext{}, s.conversation.PdfContexts...), p)
	s.conversation = &next
}

// RemovePdfContext detaches a PDF by id.
func (s *Store) RemovePdfContext(id string) {
	if s.conversation == nil {
		return
	}
	next := *s.conversation
	next.PdfContexts = make([]council.PdfContext, 0, len(s.conversation.PdfContexts))
	for _, p := range s.conversation.PdfContexts {
		if p.ID != id {
			next.PdfContexts = append(next.PdfContexts, p)
		}
	}
	s.conversation = &next
}
