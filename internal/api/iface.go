package api

import (
	"context"
	"io"

	"council-cli/internal/council"
)

// CouncilAPI defines the interface for the LLM Council API client.
// *Client satisfies this interface. TUI and tests can use mock implementations.
type CouncilAPI interface {
	Login(password string) (*LoginResponse, error)
	ListConversations() ([]council.ConversationMetadata, error)
	CreateConversation() (*council.Conversation, error)
	GetConversation(conversationID string) (*council.Conversation, error)
	SendMessageStream(ctx context.Context, conversationID, content string, cb StreamCallback) error
	UploadPDF(conversationID, filename string, r io.Reader) (*UploadPDFResponse, error)
	RemovePDF(conversationID, pdfID string) error
}

var _ CouncilAPI = (*Client)(nil)
