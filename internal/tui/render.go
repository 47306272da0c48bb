package tui

import (
	"fmt"
	"sort"
	"strings"

	"council-cli/internal/api"
	"council-cli/internal/council"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// ─── Welcome Screen ─────────────────────────────────────────────────────────

func renderWelcome(version, server string, width int) string {
	titleLine := logoTitleStyle.Render("LLM Council") + " " + versionStyle.Render("v"+version)

	var infoLine string
	if server == "" {
		infoLine = welcomeHintStyle.Render("Type /login <url> to get started")
	} else {
		serverDisplay := server
		if len(serverDisplay) > 40 {
			serverDisplay = serverDisplay[:37] + "..."
		}
		infoLine = welcomeInfoLabel.Render(serverDisplay)
	}

	return fmt.Sprintf("\n%s\n\n%s\n%s\n", renderCouncilArt(), titleLine, infoLine)
}

const councilASCIIArt = `
          ++++++++++++++++++++++++++
           ++++++++++++++++++++++++
              ******************
         **************************
         **  ***  ***  ***  ***  **
         **  ***  ***  ***  ***  **
         **  ***  ***  ***  ***  **
         **  ***  ***  ***  ***  **
         **  ***  ***  ***  ***  **
        ****************************
       ++++++++++++++++++++++++++++++
`

func renderCouncilArt() string {
	lines := strings.Split(councilASCIIArt, "\n")
	lines = trimEmptyEdgeLines(lines)

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := countLeadingSpaces(line)
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}

	for i, line := range lines {
		line = strings.TrimRight(line, " ")
		if minIndent > 0 && len(line) >= minIndent {
			line = line[minIndent:]
		}
		lines[i] = colorizeArtLine(line)
	}

	return strings.Join(lines, "\n")
}

func trimEmptyEdgeLines(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}

	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

func countLeadingSpaces(s string) int {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i
}

func colorizeArtLine(line string) string {
	const (
		stylePlain = iota
		styleBody
		styleAccent
	)

	styleFor := func(r rune) int {
		switch r {
		case '*':
			return styleBody
		case '+':
			return styleAccent
		default:
			return stylePlain
		}
	}

	render := func(style int, s string) string {
		switch style {
		case styleBody:
			return logoBodyStyle.Render(s)
		case styleAccent:
			return logoAccentStyle.Render(s)
		default:
			return s
		}
	}

	var out strings.Builder
	var run strings.Builder
	currentStyle := stylePlain
	first := true

	flush := func() {
		if run.Len() == 0 {
			return
		}
		out.WriteString(render(currentStyle, run.String()))
		run.Reset()
	}

	for _, r := range line {
		nextStyle := styleFor(r)
		if first {
			currentStyle = nextStyle
			first = false
		} else if nextStyle != currentStyle {
			flush()
			currentStyle = nextStyle
		}
		run.WriteRune(r)
	}

	flush()
	return out.String()
}

// ─── Markdown ───────────────────────────────────────────────────────────────

// renderAnswer renders markdown for printing above the prompt.
func renderAnswer(md string, width int) string {
	if width <= 0 || width > 96 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

func (m model) answerWidth() int {
	w := m.width - 4
	if w > 76 {
		w = 76
	}
	if w < 40 {
		w = 40
	}
	return w
}

func printBlock(text string) []tea.Cmd {
	var cmds []tea.Cmd
	for _, line := range strings.Split(text, "\n") {
		cmds = append(cmds, tea.Println("  "+line))
	}
	return cmds
}

// ─── Stream event rendering ─────────────────────────────────────────────────

// renderStreamEvent turns an applied protocol event into printed output. The
// state transition happened already in the runner; this only formats.
func (m model) renderStreamEvent(ev *api.StreamEvent) tea.Cmd {
	switch ev.Type {
	case api.EventStage1Start:
		return tea.Println(statusStyle.Render("  ⟳ Stage 1 · models answering independently"))

	case api.EventStage1Complete:
		responses, err := ev.Stage1Data()
		if err != nil {
			return nil
		}
		names := make([]string, 0, len(responses))
		for _, r := range responses {
			names = append(names, council.ShortModelName(r.Model))
		}
		return tea.Sequence(
			tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Stage 1 · %d responses in", len(responses)))),
			tea.Println(dimStyle.Render("    "+strings.Join(names, ", "))),
		)

	case api.EventStage2Start:
		return tea.Println(statusStyle.Render("  ⟳ Stage 2 · models reviewing each other (anonymized)"))

	case api.EventStage2Complete:
		rankings, err := ev.Stage2Data()
		if err != nil {
			return nil
		}
		cmds := []tea.Cmd{
			tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Stage 2 · %d rankings in", len(rankings)))),
		}
		if meta, err := ev.MetadataData(); err == nil {
			cmds = append(cmds, renderLeaderboard(meta)...)
		}
		return tea.Sequence(cmds...)

	case api.EventStage3Start:
		return tea.Println(statusStyle.Render("  ⟳ Stage 3 · chairman writing the final answer"))

	case api.EventStage3Complete:
		final, err := ev.Stage3Data()
		if err != nil {
			return nil
		}
		cmds := []tea.Cmd{
			tea.Println(successMsgStyle.Render("  ✓ Stage 3 · " + council.ShortModelName(final.Model))),
			tea.Println(""),
		}
		cmds = append(cmds, printBlock(renderAnswer(final.Response, m.answerWidth()))...)
		cmds = append(cmds,
			tea.Println(""),
			tea.Println(dimStyle.Render("  /stages for every model's answer and the peer rankings")),
		)
		return tea.Sequence(cmds...)

	case api.EventComplete:
		return nil

	case api.EventError:
		cmds := []tea.Cmd{
			tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %s", ev.Message))),
		}
		if t := m.runner.Turn(); t != nil && t.Committed() {
			cmds = append(cmds, tea.Println(dimStyle.Render("    Stages that finished were kept.")))
		}
		return tea.Sequence(cmds...)
	}
	return nil
}

// renderLeaderboard prints the aggregate ranking from stage 2 metadata,
// best average rank first.
func renderLeaderboard(meta *council.Metadata) []tea.Cmd {
	if meta == nil || len(meta.AggregateRankings) == 0 {
		return nil
	}
	ranked := make([]council.AggregateRanking, len(meta.AggregateRankings))
	copy(ranked, meta.AggregateRankings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AverageRank < ranked[j].AverageRank
	})

	cmds := []tea.Cmd{tea.Println(rankingStyle.Render("    Council ranking:"))}
	for i, r := range ranked {
		cmds = append(cmds, tea.Println(dimStyle.Render(fmt.Sprintf(
			"      %d. %-24s avg %.2f (%d votes)",
			i+1, council.ShortModelName(r.Model), r.AverageRank, r.RankingsCount))))
	}
	return cmds
}

// ─── Conversation log ───────────────────────────────────────────────────────

// renderConversationLog prints an opened conversation's transcript: user
// prompts and final answers only. Stage detail stays behind /stages.
func (m model) renderConversationLog(conv *council.Conversation) []tea.Cmd {
	title := conv.Title
	if title == "" {
		title = "New Conversation"
	}

	cmds := []tea.Cmd{
		tea.Println(fmt.Sprintf("  Conversation: %s", title)),
		tea.Println(dimStyle.Render(fmt.Sprintf("    %s  %s", conv.ID, conv.CreatedAt))),
	}
	if n := len(conv.PdfContexts); n > 0 {
		cmds = append(cmds, tea.Println(dimStyle.Render(fmt.Sprintf("    📄 %d PDF(s) attached — /pdfs to list", n))))
	}

	for _, msg := range conv.Messages {
		switch msg.Role {
		case council.RoleUser:
			cmds = append(cmds,
				tea.Println(""),
				tea.Println(userPromptStyle.Render("  ❯ "+msg.Content)),
			)
		case council.RoleAssistant:
			if msg.Stage3 == nil {
				cmds = append(cmds, tea.Println(dimStyle.Render("  (no final answer)")))
				continue
			}
			cmds = append(cmds, tea.Println(""))
			cmds = append(cmds, printBlock(renderAnswer(msg.Stage3.Response, m.answerWidth()))...)
		}
	}
	return cmds
}

// ─── /stages ────────────────────────────────────────────────────────────────

// cmdStages prints the full three-stage record behind the most recent
// answer: every model's independent response, the de-anonymized peer
// rankings, the aggregate board, and the chairman's synthesis.
func (m model) cmdStages() (tea.Model, tea.Cmd) {
	conv := m.store.Conversation()
	if conv == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No conversation open."))
	}

	var msg *council.Message
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == council.RoleAssistant {
			msg = &conv.Messages[i]
			break
		}
	}
	if msg == nil || (len(msg.Stage1) == 0 && len(msg.Stage2) == 0 && msg.Stage3 == nil) {
		return m, tea.Println(warnMsgStyle.Render("  ! No council answer yet. Ask a question first."))
	}

	var labels map[string]string
	if msg.Metadata != nil {
		labels = msg.Metadata.LabelToModel
	}

	var cmds []tea.Cmd

	if len(msg.Stage1) > 0 {
		cmds = append(cmds,
			tea.Println(""),
			tea.Println(stageHeaderStyle.Render("  Stage 1 · independent responses")),
		)
		for _, r := range msg.Stage1 {
			cmds = append(cmds,
				tea.Println(""),
				tea.Println(rankingStyle.Render("  ── "+council.ShortModelName(r.Model)+" ──")),
			)
			cmds = append(cmds, printBlock(renderAnswer(r.Response, m.answerWidth()))...)
		}
	}

	if len(msg.Stage2) > 0 {
		cmds = append(cmds,
			tea.Println(""),
			tea.Println(stageHeaderStyle.Render("  Stage 2 · peer review")),
		)
		for _, r := range msg.Stage2 {
			cmds = append(cmds,
				tea.Println(""),
				tea.Println(rankingStyle.Render("  ── review by "+council.ShortModelName(r.Model)+" ──")),
			)
			text := council.DeAnonymize(r.Ranking, labels)
			cmds = append(cmds, printBlock(renderAnswer(text, m.answerWidth()))...)
			if len(r.ParsedRanking) > 0 {
				parts := make([]string, 0, len(r.ParsedRanking))
				for _, label := range r.ParsedRanking {
					parts = append(parts, council.LabelModel(label, labels))
				}
				cmds = append(cmds, tea.Println(dimStyle.Render("    order: "+strings.Join(parts, " > "))))
			}
		}
		cmds = append(cmds, tea.Println(""))
		cmds = append(cmds, renderLeaderboard(msg.Metadata)...)
	}

	if msg.Stage3 != nil {
		cmds = append(cmds,
			tea.Println(""),
			tea.Println(stageHeaderStyle.Render("  Stage 3 · final synthesis ("+council.ShortModelName(msg.Stage3.Model)+")")),
			tea.Println(""),
		)
		cmds = append(cmds, printBlock(renderAnswer(msg.Stage3.Response, m.answerWidth()))...)
	}

	cmds = append(cmds, tea.Println(""))
	return m, tea.Sequence(cmds...)
}
