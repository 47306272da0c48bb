// Package council holds the data model for the LLM Council protocol:
// conversations, messages, and the three stage results that make up one
// assistant answer (independent responses, peer rankings, final synthesis).
package council

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StageLoading tracks which stages of the in-flight assistant message are
// currently being computed by the server. Each flag goes false → true on
// stageN_start and true → false on stageN_complete, exactly once per turn.
type StageLoading struct {
	Stage1 bool `json:"stage1"`
	Stage2 bool `json:"stage2"`
	Stage3 bool `json:"stage3"`
}

// Message is one entry in a conversation. User messages carry Content;
// assistant messages carry the stage results. Loading is only non-nil on the
// assistant message whose turn is still streaming.
type Message struct {
	Role     string           `json:"role"`
	Content  string           `json:"content,omitempty"`
	Stage1   []Stage1Response `json:"stage1,omitempty"`
	Stage2   []Stage2Ranking  `json:"stage2,omitempty"`
	Stage3   *Stage3Response  `json:"stage3,omitempty"`
	Metadata *Metadata        `json:"metadata,omitempty"`
	Loading  *StageLoading    `json:"loading,omitempty"`
}

// NewUserMessage builds a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantPlaceholder builds the not-yet-populated assistant message that
// is appended at turn start, before any stage event arrives.
func NewAssistantPlaceholder() Message {
	return Message{Role: RoleAssistant, Loading: &StageLoading{}}
}

// PdfContext is an uploaded PDF attached to a conversation.
type PdfContext struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Summary  string `json:"summary"`
}

// Conversation is a full conversation as returned by GET /api/conversations/{id}.
// Timestamps stay as the server's strings; the client never does date math.
type Conversation struct {
	ID          string       `json:"id"`
	CreatedAt   string       `json:"created_at"`
	Title       string       `json:"title,omitempty"`
	Messages    []Message    `json:"messages"`
	PdfContexts []PdfContext `json:"pdf_contexts,omitempty"`
}

// ConversationMetadata is the summary form used for the sidebar list.
type ConversationMetadata struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Title        string `json:"title,omitempty"`
	MessageCount int    `json:"message_count"`
}

// DisplayTitle returns the title, or a placeholder for untitled conversations.
func (cm ConversationMetadata) DisplayTitle() string {
	if cm.Title != "" {
		return cm.Title
	}
	return "New Conversation"
}
