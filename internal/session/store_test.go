package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-cli/internal/council"
)

func openConv(s *Store, id string, msgs ...council.Message) {
	s.SetConversation(&council.Conversation{ID: id, Messages: msgs})
}

func TestAppendMessageCopiesOnWrite(t *testing.T) {
	s := NewStore()
	openConv(s, "c1", council.NewUserMessage("one"))
	before := s.Conversation()

	s.AppendMessage(council.NewUserMessage("two"))
	after := s.Conversation()

	assert.NotSame(t, before, after, "mutation must yield a new conversation value")
	assert.Len(t, before.Messages, 1, "prior snapshot stays intact")
	require.Len(t, after.Messages, 2)
	assert.Equal(t, "two", after.Messages[1].Content)
}

func TestPatchMessage(t *testing.T) {
	s := NewStore()
	openConv(s, "c1", council.NewUserMessage("q"), council.NewAssistantPlaceholder())

	s.PatchMessage(1, func(m council.Message) council.Message {
		m.Stage3 = &council.Stage3Response{Model: "m", Response: "done"}
		m.Loading = nil
		return m
	})

	msgs := s.Conversation().Messages
	require.NotNil(t, msgs[1].Stage3)
	assert.Equal(t, "done", msgs[1].Stage3.Response)
	assert.Nil(t, msgs[1].Loading)
	assert.Equal(t, "q", msgs[0].Content, "only the addressed message is patched")
}

func TestPatchMessageOutOfRange(t *testing.T) {
	s := NewStore()
	openConv(s, "c1", council.NewUserMessage("q"))
	before := s.Conversation()

	s.PatchMessage(5, func(m council.Message) council.Message {
		m.Content = "clobbered"
		return m
	})
	s.PatchMessage(-1, func(m council.Message) council.Message {
		m.Content = "clobbered"
		return m
	})

	assert.Same(t, before, s.Conversation())
}

func TestMutationsWithoutConversationAreNoops(t *testing.T) {
	s := NewStore()

	s.AppendMessage(council.NewUserMessage("x"))
	s.PatchMessage(0, func(m council.Message) council.Message { return m })
	s.AddPdfContext(council.PdfContext{ID: "p1"})
	s.RemovePdfContext("p1")

	assert.Nil(t, s.Conversation())
}

func TestAddPdfContextDedupes(t *testing.T) {
	s := NewStore()
	openConv(s, "c1")

	s.AddPdfContext(council.PdfContext{ID: "p1", Filename: "a.pdf"})
	s.AddPdfContext(council.PdfContext{ID: "p1", Filename: "a.pdf"})
	s.AddPdfContext(council.PdfContext{ID: "p2", Filename: "b.pdf"})

	require.Len(t, s.Conversation().PdfContexts, 2)
}

func TestRemovePdfContext(t *testing.T) {
	s := NewStore()
	openConv(s, "c1")
	s.AddPdfContext(council.PdfContext{ID: "p1"})
	s.AddPdfContext(council.PdfContext{ID: "p2"})

	s.RemovePdfContext("p1")

	pdfs := s.Conversation().PdfContexts
	require.Len(t, pdfs, 1)
	assert.Equal(t, "p2", pdfs[0].ID)
}

func TestReset(t *testing.T) {
	s := NewStore()
	s.SetSummaries([]council.ConversationMetadata{{ID: "c1"}})
	openConv(s, "c1")

	s.Reset()

	assert.Nil(t, s.Summaries())
	assert.Nil(t, s.Conversation())
}
