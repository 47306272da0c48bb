package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"council-cli/internal/api"
	"council-cli/internal/config"
	"council-cli/internal/council"
	"council-cli/internal/session"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ─── Input dispatcher ───────────────────────────────────────────────────────

func (m model) dispatchInput(input string) (tea.Model, tea.Cmd) {
	if input == "?" {
		return m.cmdHelp()
	}
	if strings.HasPrefix(input, "/") {
		return m.dispatchCommand(input)
	}
	// Default: treat as a question for the council
	return m.cmdSend(input)
}

func (m model) dispatchCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/h":
		return m.cmdHelp()
	case "/login":
		return m.cmdLogin(args)
	case "/logout":
		return m.cmdLogout()
	case "/new":
		return m.cmdNew()
	case "/conversations", "/ls":
		return m.cmdConversations()
	case "/open":
		return m.cmdOpen(args)
	case "/stages":
		return m.cmdStages()
	case "/pdfs":
		return m.cmdPdfs()
	case "/upload":
		return m.cmdUpload(args)
	case "/rm-pdf":
		return m.cmdRmPdf(args)
	case "/config":
		return m.cmdConfig()
	case "/clear":
		return m.cmdClear()
	case "/quit", "/exit", "/q":
		return m, tea.Quit
	default:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Unknown command: %s — type /help", cmd)))
	}
}

// ─── /help ──────────────────────────────────────────────────────────────────

func (m model) cmdHelp() (tea.Model, tea.Cmd) {
	pad := func(s string, w int) string {
		for len(s) < w {
			s += " "
		}
		return s
	}

	lines := []tea.Cmd{
		tea.Println(""),
		tea.Println(dimStyle.Render("  Shortcuts:")),
		tea.Println(""),
		tea.Println("  " + pad(hintKeyStyle.Render("/login <url>"), 30) + dimStyle.Render("Login to a council server")),
		tea.Println("  " + pad(hintKeyStyle.Render("/new"), 30) + dimStyle.Render("Start a new conversation")),
		tea.Println("  " + pad(hintKeyStyle.Render("/conversations"), 30) + dimStyle.Render("List your conversations")),
		tea.Println("  " + pad(hintKeyStyle.Render("/open <id>"), 30) + dimStyle.Render("Open a conversation")),
		tea.Println("  " + pad(hintKeyStyle.Render("/stages"), 30) + dimStyle.Render("Stage detail for the last answer")),
		tea.Println("  " + pad(hintKeyStyle.Render("/upload <file.pdf>"), 30) + dimStyle.Render("Attach a PDF to this conversation")),
		tea.Println("  " + pad(hintKeyStyle.Render("/pdfs"), 30) + dimStyle.Render("List attached PDFs")),
		tea.Println("  " + pad(hintKeyStyle.Render("/rm-pdf <id>"), 30) + dimStyle.Render("Detach a PDF")),
		tea.Println("  " + pad(hintKeyStyle.Render("/config"), 30) + dimStyle.Render("Show current configuration")),
		tea.Println("  " + pad(hintKeyStyle.Render("/logout"), 30) + dimStyle.Render("Log out and forget the token")),
		tea.Println("  " + pad(hintKeyStyle.Render("/clear"), 30) + dimStyle.Render("Clear the screen")),
		tea.Println("  " + pad(hintKeyStyle.Render("/quit"), 30) + dimStyle.Render("Exit Council")),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Or just type a question — all council models will weigh in.")),
		tea.Println(""),
	}
	return m, tea.Sequence(lines...)
}

// ─── /login ─────────────────────────────────────────────────────────────────

func (m model) cmdLogin(args []string) (tea.Model, tea.Cmd) {
	if len(args) > 0 {
		m.loginServer = args[0]
		return m.promptForPassword()
	}

	m.mode = modeLoginURL
	m.input.Placeholder = "Server URL (e.g. http://localhost:8001)..."
	m.input.SetValue("")
	return m, tea.Println(dimStyle.Render("  Enter the council server URL:"))
}

func (m model) handleLoginURLSubmit(value string) (tea.Model, tea.Cmd) {
	m.loginServer = value
	return m.promptForPassword()
}

func (m model) promptForPassword() (tea.Model, tea.Cmd) {
	m.mode = modeLoginPass
	m.input.Placeholder = "Password..."
	m.input.SetValue("")
	m.input.EchoCharacter = '•'
	m.input.EchoMode = textinput.EchoPassword
	return m, tea.Sequence(
		tea.Println(dimStyle.Render(fmt.Sprintf("  Server: %s", m.loginServer))),
		tea.Println(dimStyle.Render("  Enter the access password:")),
	)
}

type loginResultMsg struct {
	cfg *config.Config
	err error
}

func (m model) handleLoginPassSubmit(value string) (tea.Model, tea.Cmd) {
	password := value
	m.input.EchoMode = textinput.EchoNormal
	m.input.SetValue("")
	m.input.Placeholder = "Authenticating..."

	server := strings.TrimRight(m.loginServer, "/")
	profile := m.profile

	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Authenticating...")),
		func() tea.Msg {
			client := api.NewClientWithServer(server)
			loginResp, err := client.Login(password)
			if err != nil {
				return loginResultMsg{err: fmt.Errorf("authentication failed: %w", err)}
			}

			cfg, err := config.Load(profile)
			if err != nil {
				return loginResultMsg{err: err}
			}
			cfg.Server = server
			if err := cfg.StoreToken(loginResp.Token); err != nil {
				return loginResultMsg{err: err}
			}
			if err := cfg.Save(); err != nil {
				return loginResultMsg{err: err}
			}
			return loginResultMsg{cfg: cfg}
		},
	)
}

func (m model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.mode = modeIdle
	m.input.Placeholder = "Ask the council or type /help..."
	m.loginServer = ""

	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", msg.err)))
	}

	m.cfg = msg.cfg
	m.client = api.NewClient(m.cfg.Server, m.cfg.BearerToken())

	return m, tea.Sequence(
		tea.Println(successMsgStyle.Render("  ✓ Logged in successfully!")),
		tea.Println(dimStyle.Render(fmt.Sprintf("    Server: %s", m.cfg.Server))),
		tea.Println(dimStyle.Render("    Type a question, or /new to start fresh.")),
		tea.Println(""),
		loadSummaries(m.client),
	)
}

// ─── /logout ────────────────────────────────────────────────────────────────

func (m model) cmdLogout() (tea.Model, tea.Cmd) {
	if m.cfg != nil {
		if err := m.cfg.ForgetToken(); err != nil {
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
		}
		m.cfg.LastConversation = ""
		if err := m.cfg.Save(); err != nil {
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
		}
	}
	m.client = nil
	m.store.Reset()
	return m, tea.Println(successMsgStyle.Render("  ✓ Logged out."))
}

// handleSessionExpired is the shared 401 path: every endpoint that answers
// unauthorized invalidates the whole session, exactly once.
func (m model) handleSessionExpired() (tea.Model, tea.Cmd) {
	if m.cfg != nil {
		m.cfg.ForgetToken()
		m.cfg.Save()
	}
	m.client = nil
	m.store.Reset()
	return m, tea.Sequence(
		tea.Println(warnMsgStyle.Render("  ! Session expired.")),
		tea.Println(dimStyle.Render("    Run /login to continue.")),
	)
}

func isUnauthorized(err error) bool {
	return errors.Is(err, api.ErrUnauthorized)
}

// ─── /config ────────────────────────────────────────────────────────────────

func (m model) cmdConfig() (tea.Model, tea.Cmd) {
	if m.cfg == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No configuration found. Run /login first."))
	}

	val := func(s string) string {
		if s == "" {
			return dimStyle.Render("(not set)")
		}
		return s
	}
	token := dimStyle.Render("(not set)")
	if t := m.cfg.BearerToken(); t != "" {
		end := 12
		if len(t) < end {
			end = len(t)
		}
		token = t[:end] + "..."
	}

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(dimStyle.Render("  Configuration:")),
		tea.Println(fmt.Sprintf("    Profile: %s", config.ProfileName(m.profile))),
		tea.Println(fmt.Sprintf("    Server:  %s", val(m.cfg.Server))),
		tea.Println(fmt.Sprintf("    Token:   %s", token)),
		tea.Println(""),
	)
}

// ─── /conversations ─────────────────────────────────────────────────────────

type summariesLoadedMsg struct {
	summaries []council.ConversationMetadata
	announce  bool
	err       error
}

// loadSummaries is the silent background refresh used after title_complete
// and complete events.
func loadSummaries(client api.CouncilAPI) tea.Cmd {
	return func() tea.Msg {
		list, err := client.ListConversations()
		return summariesLoadedMsg{summaries: list, err: err}
	}
}

func (m model) cmdConversations() (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}

	client := m.client
	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Loading conversations...")),
		func() tea.Msg {
			list, err := client.ListConversations()
			return summariesLoadedMsg{summaries: list, announce: true, err: err}
		},
	)
}

func (m model) handleSummariesLoaded(msg summariesLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if isUnauthorized(msg.err) {
			return m.handleSessionExpired()
		}
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to load conversations: %v", msg.err)))
	}

	m.store.SetSummaries(msg.summaries)
	if !msg.announce {
		return m, nil
	}

	if len(msg.summaries) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! No conversations yet. Type a question to start one."))
	}

	open := ""
	if conv := m.store.Conversation(); conv != nil {
		open = conv.ID
	}

	var cmds []tea.Cmd
	cmds = append(cmds,
		tea.Println(""),
		tea.Println(dimStyle.Render(fmt.Sprintf("  Conversations (%d):", len(msg.summaries)))),
		tea.Println(""),
	)
	for _, s := range msg.summaries {
		marker := " "
		if s.ID == open {
			marker = userPromptStyle.Render("●")
		}
		cmds = append(cmds,
			tea.Println(fmt.Sprintf("  %s %s  %s", marker, s.DisplayTitle(), dimStyle.Render(fmt.Sprintf("(%d messages)", s.MessageCount)))),
			tea.Println(dimStyle.Render(fmt.Sprintf("     %s  %s", s.ID, s.CreatedAt))),
		)
	}
	cmds = append(cmds,
		tea.Println(""),
		tea.Println(dimStyle.Render("  Tip: /open <id> to continue a conversation")),
		tea.Println(""),
	)
	return m, tea.Sequence(cmds...)
}

// ─── /new ───────────────────────────────────────────────────────────────────

type conversationCreatedMsg struct {
	conv *council.Conversation
	err  error
}

func createConversation(client api.CouncilAPI) tea.Cmd {
	return func() tea.Msg {
		conv, err := client.CreateConversation()
		return conversationCreatedMsg{conv: conv, err: err}
	}
}

func (m model) cmdNew() (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Starting a new conversation...")),
		createConversation(m.client),
	)
}

func (m model) handleConversationCreated(msg conversationCreatedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.pendingPrompt = ""
		if isUnauthorized(msg.err) {
			return m.handleSessionExpired()
		}
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Could not create conversation: %v", msg.err)))
	}

	m.store.SetConversation(msg.conv)
	m.rememberConversation(msg.conv.ID)

	cmds := []tea.Cmd{
		tea.Println(successMsgStyle.Render("  ✓ New conversation started")),
		tea.Println(dimStyle.Render(fmt.Sprintf("    %s", msg.conv.ID))),
		loadSummaries(m.client),
	}

	// A question was waiting on the conversation; send it now.
	if m.pendingPrompt != "" {
		prompt := m.pendingPrompt
		m.pendingPrompt = ""
		next, cmd := m.startTurn(prompt)
		return next, tea.Sequence(append(cmds, cmd)...)
	}
	return m, tea.Sequence(cmds...)
}

// ─── /open ──────────────────────────────────────────────────────────────────

type conversationLoadedMsg struct {
	conv *council.Conversation
	err  error
}

func openConversation(client api.CouncilAPI, id string) tea.Cmd {
	return func() tea.Msg {
		conv, err := client.GetConversation(id)
		return conversationLoadedMsg{conv: conv, err: err}
	}
}

func (m model) cmdOpen(args []string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	if len(args) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /open <conversation-id>"))
	}
	if m.runner.InFlight() {
		// Opening another conversation abandons the stream. Close the
		// turn first so the in-flight guard does not outlive it; events
		// still buffered for the old turn are then dropped, not
		// misapplied.
		if t := m.runner.Turn(); t != nil {
			m.runner.Fail(t.ID, fmt.Errorf("superseded"))
		}
		activeStreamCh = nil
		if m.streamCancel != nil {
			m.streamCancel()
			m.streamCancel = nil
		}
		m.mode = modeIdle
	}
	return m, tea.Sequence(
		tea.Println(statusStyle.Render(fmt.Sprintf("  ⟳ Opening %s...", shortID(args[0])))),
		openConversation(m.client, args[0]),
	)
}

func (m model) handleConversationLoaded(msg conversationLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if isUnauthorized(msg.err) {
			return m.handleSessionExpired()
		}
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Could not open conversation: %v", msg.err)))
	}

	m.store.SetConversation(msg.conv)
	m.rememberConversation(msg.conv.ID)

	cmds := []tea.Cmd{tea.Println("")}
	cmds = append(cmds, m.renderConversationLog(msg.conv)...)
	cmds = append(cmds, tea.Println(""))
	return m, tea.Sequence(cmds...)
}

// rememberConversation persists the open conversation id so the next run
// reopens it.
func (m *model) rememberConversation(id string) {
	if m.cfg == nil {
		return
	}
	m.cfg.LastConversation = id
	m.cfg.Save()
}

// ─── /pdfs, /upload, /rm-pdf ────────────────────────────────────────────────

func (m model) cmdPdfs() (tea.Model, tea.Cmd) {
	conv := m.store.Conversation()
	if conv == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No conversation open."))
	}
	if len(conv.PdfContexts) == 0 {
		return m, tea.Println(dimStyle.Render("  No PDFs attached."))
	}

	var cmds []tea.Cmd
	cmds = append(cmds, tea.Println(""), tea.Println(dimStyle.Render("  Attached PDFs:")))
	for _, p := range conv.PdfContexts {
		cmds = append(cmds,
			tea.Println(fmt.Sprintf("  📄 %s", p.Filename)),
			tea.Println(dimStyle.Render(fmt.Sprintf("     %s", p.ID))),
		)
		if p.Summary != "" {
			cmds = append(cmds, tea.Println(dimStyle.Render("     "+firstLine(p.Summary))))
		}
	}
	cmds = append(cmds, tea.Println(""))
	return m, tea.Sequence(cmds...)
}

type pdfUploadedMsg struct {
	pdf council.PdfContext
	err error
}

func (m model) cmdUpload(args []string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	conv := m.store.Conversation()
	if conv == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No conversation open. /new first."))
	}
	if len(args) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /upload <file.pdf>"))
	}

	path := args[0]
	client := m.client
	convID := conv.ID

	return m, tea.Sequence(
		tea.Println(statusStyle.Render(fmt.Sprintf("  ⟳ Uploading %s...", filepath.Base(path)))),
		func() tea.Msg {
			f, err := os.Open(path)
			if err != nil {
				return pdfUploadedMsg{err: err}
			}
			defer f.Close()
			resp, err := client.UploadPDF(convID, filepath.Base(path), f)
			if err != nil {
				return pdfUploadedMsg{err: err}
			}
			return pdfUploadedMsg{pdf: resp.Pdf}
		},
	)
}

func (m model) handlePdfUploaded(msg pdfUploadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if isUnauthorized(msg.err) {
			return m.handleSessionExpired()
		}
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Upload failed: %v", msg.err)))
	}
	m.store.AddPdfContext(msg.pdf)
	return m, tea.Sequence(
		tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Attached %s", msg.pdf.Filename))),
		tea.Println(dimStyle.Render("    The council will see it on your next question.")),
	)
}

type pdfRemovedMsg struct {
	id  string
	err error
}

func (m model) cmdRmPdf(args []string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Run /login first."))
	}
	conv := m.store.Conversation()
	if conv == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No conversation open."))
	}
	if len(args) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /rm-pdf <pdf-id>"))
	}

	id := args[0]
	client := m.client
	convID := conv.ID

	return m, func() tea.Msg {
		err := client.RemovePDF(convID, id)
		return pdfRemovedMsg{id: id, err: err}
	}
}

func (m model) handlePdfRemoved(msg pdfRemovedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if isUnauthorized(msg.err) {
			return m.handleSessionExpired()
		}
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Remove failed: %v", msg.err)))
	}
	m.store.RemovePdfContext(msg.id)
	return m, tea.Println(successMsgStyle.Render("  ✓ PDF detached."))
}

// ─── /clear ─────────────────────────────────────────────────────────────────

func (m model) cmdClear() (tea.Model, tea.Cmd) {
	return m, tea.ClearScreen
}

// ─── Sending a question ─────────────────────────────────────────────────────

func (m model) cmdSend(prompt string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Type /login to get started."))
	}
	if m.store.Conversation() == nil {
		// No conversation open: create one, then send.
		m.pendingPrompt = prompt
		return m, tea.Sequence(
			tea.Println(statusStyle.Render("  ⟳ Starting a new conversation...")),
			createConversation(m.client),
		)
	}
	return m.startTurn(prompt)
}

func (m model) startTurn(prompt string) (tea.Model, tea.Cmd) {
	turn, err := m.runner.Begin(prompt)
	switch {
	case errors.Is(err, session.ErrTurnInFlight):
		return m, tea.Println(warnMsgStyle.Render("  ! The council is still deliberating. Esc to cancel."))
	case errors.Is(err, session.ErrEmptyMessage):
		return m, nil
	case err != nil:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", err)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.streamCancel = cancel
	m.mode = modeStreaming

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(userPromptStyle.Render("  ❯ "+prompt)),
		tea.Println(""),
		beginStream(ctx, m.client, turn.ID, turn.ConversationID, turn.Content),
	)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:97] + "..."
	}
	return s
}
