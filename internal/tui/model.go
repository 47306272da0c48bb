package tui

import (
	"fmt"
	"strings"

	"council-cli/internal/api"
	"council-cli/internal/config"
	"council-cli/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ─── App mode ───────────────────────────────────────────────────────────────

type appMode int

const (
	modeIdle appMode = iota
	modeStreaming
	modeLoginURL
	modeLoginPass
)

// ─── Slash command registry ─────────────────────────────────────────────────

type slashCmd struct {
	name string
	desc string
}

var slashCommands = []slashCmd{
	{"/clear", "Clear the screen"},
	{"/config", "Show current configuration"},
	{"/conversations", "List your conversations"},
	{"/help", "Show all commands"},
	{"/login", "Login to a council server"},
	{"/logout", "Log out and forget the stored token"},
	{"/new", "Start a new conversation"},
	{"/open", "Open a conversation by id"},
	{"/pdfs", "List PDFs attached to this conversation"},
	{"/quit", "Exit Council"},
	{"/rm-pdf", "Detach a PDF from this conversation"},
	{"/stages", "Show stage detail for the last answer"},
	{"/upload", "Attach a PDF to this conversation"},
}

// ─── Model ──────────────────────────────────────────────────────────────────

type model struct {
	width  int
	height int

	// Bubble Tea components
	input   textinput.Model
	spinner spinner.Model

	// App state
	mode    appMode
	cfg     *config.Config
	client  api.CouncilAPI
	store   *session.Store
	runner  *session.Runner
	version string
	profile string

	// Streaming state
	streamCancel func()
	// needsReload is set by the runner when the server changed derived
	// conversation data (title, counts) mid-stream. Shared pointer because
	// Bubble Tea copies the model by value on every update.
	needsReload *bool

	// pendingPrompt is a message submitted before any conversation was
	// open; it is sent as soon as the auto-created conversation arrives.
	pendingPrompt string

	// Login flow state
	loginServer string

	// UI state
	ready        bool
	cmdMenuIdx   int    // selected index in command menu (-1 = none)
	cmdMenuOpen  bool   // whether the command menu is visible
	lastInputVal string // track input changes to reset menu index

	// Command history
	history      []string // stored command history
	historyIdx   int      // current position in history (-1 = not browsing)
	historySaved string   // saved input value when entering history mode
}

func initialModel(version, profile string) model {
	ti := textinput.New()
	ti.Placeholder = "Ask the council or type /help..."
	ti.Focus()
	ti.CharLimit = 4096
	ti.Prompt = "❯ "
	ti.PromptStyle = promptSymbol
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(colorViolet)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorViolet)

	cfg, _ := config.Load(profile)

	var client api.CouncilAPI
	if cfg != nil && cfg.Server != "" && cfg.BearerToken() != "" {
		client = api.NewClient(cfg.Server, cfg.BearerToken())
	}

	store := session.NewStore()
	needsReload := new(bool)
	runner := session.NewRunner(store, func() { *needsReload = true })

	return model{
		input:       ti,
		spinner:     sp,
		version:     version,
		profile:     profile,
		cfg:         cfg,
		client:      client,
		store:       store,
		runner:      runner,
		needsReload: needsReload,
		mode:        modeIdle,
		history:     make([]string, 0),
		historyIdx:  -1,
	}
}

// ─── Init ───────────────────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spinner.Tick,
	}
	if m.client != nil {
		cmds = append(cmds, loadSummaries(m.client))
		if m.cfg != nil && m.cfg.LastConversation != "" {
			cmds = append(cmds, openConversation(m.client, m.cfg.LastConversation))
		}
	}
	return tea.Batch(cmds...)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 6

		if !m.ready {
			m.ready = true
			// Print welcome header on first render
			welcome := renderWelcome(m.version, serverStr(m.cfg), m.width)
			cmds = append(cmds, tea.Println(welcome))
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.mode == modeStreaming {
				return m.cancelStream()
			}
			return m, tea.Quit

		case tea.KeyEsc:
			if m.mode == modeStreaming {
				return m.cancelStream()
			}
			if m.mode == modeLoginURL || m.mode == modeLoginPass {
				m.mode = modeIdle
				m.input.Placeholder = "Ask the council or type /help..."
				m.input.SetValue("")
				m.input.EchoMode = textinput.EchoNormal
				cmds = append(cmds, tea.Println(warnMsgStyle.Render("  ! Login cancelled.")))
				return m, tea.Batch(cmds...)
			}
			if m.cmdMenuOpen {
				m.cmdMenuOpen = false
				m.cmdMenuIdx = 0
				return m, nil
			}

		case tea.KeyUp:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx--
						if m.cmdMenuIdx < 0 {
							m.cmdMenuIdx = len(matches) - 1
						}
						return m, nil
					}
				} else if len(m.history) > 0 {
					if m.historyIdx == -1 {
						m.historySaved = m.input.Value()
						m.historyIdx = len(m.history) - 1
					} else {
						m.historyIdx--
						if m.historyIdx < 0 {
							m.historyIdx = 0
						}
					}
					m.input.SetValue(m.history[m.historyIdx])
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyDown:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx++
						if m.cmdMenuIdx >= len(matches) {
							m.cmdMenuIdx = 0
						}
						return m, nil
					}
				} else if m.historyIdx != -1 {
					m.historyIdx++
					if m.historyIdx >= len(m.history) {
						m.historyIdx = -1
						m.input.SetValue(m.historySaved)
						m.historySaved = ""
					} else {
						m.input.SetValue(m.history[m.historyIdx])
					}
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyTab:
			if m.mode == modeIdle && m.cmdMenuOpen {
				matches := matchCommands(m.input.Value())
				if len(matches) > 0 {
					idx := m.cmdMenuIdx
					if idx < 0 || idx >= len(matches) {
						idx = 0
					}
					m.input.SetValue(matches[idx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
				}
				return m, nil
			}

		case tea.KeyEnter:
			// If command menu is open and an item is selected, pick it
			if m.mode == modeIdle && m.cmdMenuOpen && m.cmdMenuIdx >= 0 {
				matches := matchCommands(m.input.Value())
				if m.cmdMenuIdx < len(matches) {
					m.input.SetValue(matches[m.cmdMenuIdx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
					return m, nil
				}
			}

			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				return m, nil
			}

			// Add to history (avoid duplicates if same as last command)
			if len(m.history) == 0 || m.history[len(m.history)-1] != value {
				m.history = append(m.history, value)
				if len(m.history) > 1000 {
					m.history = m.history[len(m.history)-1000:]
				}
			}
			m.historyIdx = -1
			m.historySaved = ""

			m.input.SetValue("")
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0

			switch m.mode {
			case modeLoginURL:
				return m.handleLoginURLSubmit(value)
			case modeLoginPass:
				return m.handleLoginPassSubmit(value)
			default:
				return m.dispatchInput(value)
			}
		}

	// ── Stream messages ───────────────────────────────────────────────
	case streamEventMsg:
		if m.runner.Apply(msg.turnID, msg.ev) {
			if printCmd := m.renderStreamEvent(msg.ev); printCmd != nil {
				cmds = append(cmds, printCmd)
			}
		}
		if *m.needsReload && m.client != nil {
			*m.needsReload = false
			cmds = append(cmds, loadSummaries(m.client))
		}
		if activeStreamCh != nil {
			cmds = append(cmds, waitForStream(activeStreamCh))
		}
		return m, tea.Batch(cmds...)

	case streamDoneMsg:
		return m.handleStreamDone(msg)

	case streamErrMsg:
		return m.handleStreamErr(msg)

	// ── Login result ──────────────────────────────────────────────────
	case loginResultMsg:
		return m.handleLoginResult(msg)

	// ── Async results ─────────────────────────────────────────────────
	case summariesLoadedMsg:
		return m.handleSummariesLoaded(msg)

	case conversationLoadedMsg:
		return m.handleConversationLoaded(msg)

	case conversationCreatedMsg:
		return m.handleConversationCreated(msg)

	case pdfUploadedMsg:
		return m.handlePdfUploaded(msg)

	case pdfRemovedMsg:
		return m.handlePdfRemoved(msg)
	}

	// Update sub-components
	var cmd tea.Cmd

	if m.mode != modeStreaming {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	// Track input changes to open/close command menu and reset selection
	newVal := m.input.Value()
	if newVal != m.lastInputVal {
		m.lastInputVal = newVal
		// Exit history mode when user types (manually edits input)
		if m.historyIdx != -1 {
			if m.historyIdx < len(m.history) && m.history[m.historyIdx] != newVal {
				m.historyIdx = -1
				m.historySaved = ""
			}
		}
		if strings.HasPrefix(newVal, "/") {
			m.cmdMenuOpen = true
			m.cmdMenuIdx = 0
		} else {
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0
		}
	}

	return m, tea.Batch(cmds...)
}

// ─── Stream lifecycle ───────────────────────────────────────────────────────

// cancelStream aborts an in-flight turn. With no stage result committed the
// optimistic user+placeholder pair is rolled back, so the conversation is
// exactly what it was before submission.
func (m model) cancelStream() (tea.Model, tea.Cmd) {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
	activeStreamCh = nil
	m.mode = modeIdle

	var cmds []tea.Cmd
	if t := m.runner.Turn(); t != nil && t.Sending {
		rolledBack := m.runner.Fail(t.ID, fmt.Errorf("cancelled"))
		cmds = append(cmds, tea.Println(warnMsgStyle.Render("  ! Cancelled.")))
		if rolledBack {
			cmds = append(cmds, tea.Println(dimStyle.Render("    Your message was not sent; the conversation is unchanged.")))
		} else {
			cmds = append(cmds, tea.Println(dimStyle.Render("    Completed stages were kept.")))
		}
	}
	return m, tea.Batch(cmds...)
}

func (m model) handleStreamDone(msg streamDoneMsg) (tea.Model, tea.Cmd) {
	m.mode = modeIdle
	activeStreamCh = nil
	m.streamCancel = nil

	var cmds []tea.Cmd

	// EOF without a terminal event: the turn is still marked in flight.
	if t := m.runner.Turn(); t != nil && t.Sending && t.ID == msg.turnID {
		rolledBack := m.runner.Fail(msg.turnID, fmt.Errorf("stream ended unexpectedly"))
		cmds = append(cmds, tea.Println(warnMsgStyle.Render("  ! The stream ended before the council finished.")))
		if rolledBack {
			cmds = append(cmds, tea.Println(dimStyle.Render("    Your message was not sent; the conversation is unchanged.")))
		}
		return m, tea.Batch(cmds...)
	}

	if *m.needsReload && m.client != nil {
		*m.needsReload = false
		cmds = append(cmds, loadSummaries(m.client))
	}
	cmds = append(cmds, tea.Println(""))
	return m, tea.Batch(cmds...)
}

func (m model) handleStreamErr(msg streamErrMsg) (tea.Model, tea.Cmd) {
	m.mode = modeIdle
	activeStreamCh = nil
	m.streamCancel = nil

	// A turn already settled elsewhere (cancel, /open) absorbs the late
	// error silently.
	if t := m.runner.Turn(); t == nil || t.ID != msg.turnID || !t.Sending {
		return m, nil
	}
	rolledBack := m.runner.Fail(msg.turnID, msg.err)

	var cmds []tea.Cmd
	if isUnauthorized(msg.err) {
		return m.handleSessionExpired()
	}
	cmds = append(cmds, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Stream error: %v", msg.err))))
	if rolledBack {
		cmds = append(cmds, tea.Println(dimStyle.Render("    Your message was not sent; the conversation is unchanged.")))
	}
	return m, tea.Batch(cmds...)
}

// ─── View ───────────────────────────────────────────────────────────────────
//
// Inline mode: View() only shows the input prompt + hints.
// All output is printed above via tea.Println.

func (m model) View() string {
	if !m.ready {
		return ""
	}

	var s strings.Builder

	// Input or streaming indicator
	if m.mode == modeStreaming {
		s.WriteString(m.spinner.View() + " " + statusStyle.Render(m.streamStatus()))
	} else {
		s.WriteString(m.input.View())
	}
	s.WriteString("\n")

	// Separator
	sepWidth := min(m.width, 80)
	if sepWidth < 20 {
		sepWidth = 20
	}
	s.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	s.WriteString("\n")

	// Hint bar
	s.WriteString(m.renderHints())

	return s.String()
}

// streamStatus derives the spinner label from the placeholder's loading
// flags. Stage 3 wins over 2 wins over 1 so the label tracks the pipeline.
func (m model) streamStatus() string {
	conv := m.store.Conversation()
	if conv == nil || len(conv.Messages) == 0 {
		return "Convening the council..."
	}
	last := conv.Messages[len(conv.Messages)-1]
	if last.Loading == nil {
		return "Convening the council..."
	}
	switch {
	case last.Loading.Stage3:
		return "Stage 3 · chairman writing the final answer..."
	case last.Loading.Stage2:
		return "Stage 2 · models reviewing each other..."
	case last.Loading.Stage1:
		return "Stage 1 · models answering independently..."
	}
	return "Convening the council..."
}

// ─── Hint bar ───────────────────────────────────────────────────────────────

func (m model) renderHints() string {
	if m.mode == modeStreaming {
		return hintBarStyle.Render("  Esc cancel")
	}

	if m.mode == modeLoginURL || m.mode == modeLoginPass {
		return hintBarStyle.Render("  Enter submit   Esc cancel")
	}

	// Show vertical command menu when menu is open
	if m.cmdMenuOpen {
		val := m.input.Value()
		matches := matchCommands(val)
		if len(matches) > 0 {
			return m.renderCommandMenu(matches)
		}
	}

	return hintBarStyle.Render("  ? for help")
}

// renderCommandMenu renders a vertical list of matching commands.
func (m model) renderCommandMenu(matches []slashCmd) string {
	maxLen := 0
	for _, c := range matches {
		if len(c.name) > maxLen {
			maxLen = len(c.name)
		}
	}

	var lines []string
	for i, c := range matches {
		padded := c.name
		for len(padded) < maxLen {
			padded += " "
		}

		var line string
		if i == m.cmdMenuIdx {
			line = "  " + cmdSelectedNameStyle.Render(padded) + "  " + cmdSelectedDescStyle.Render(c.desc)
		} else {
			line = "  " + cmdNameStyle.Render(padded) + "  " + cmdDescStyle.Render(c.desc)
		}
		lines = append(lines, line)
	}

	lines = append(lines, hintBarStyle.Render("  ↑↓ navigate  Tab/Enter select"))

	return strings.Join(lines, "\n")
}

// matchCommands returns all slash commands matching a prefix.
func matchCommands(prefix string) []slashCmd {
	prefix = strings.ToLower(prefix)
	// Just "/" with nothing else — show all
	if prefix == "/" {
		return slashCommands
	}
	var matches []slashCmd
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func serverStr(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.Server
}

func shortID(s string) string {
	if len(s) > 20 {
		return s[:8] + "..." + s[len(s)-4:]
	}
	return s
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
