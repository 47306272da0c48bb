package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"council-cli/internal/api"
	"council-cli/internal/config"
	"council-cli/internal/council"
	"council-cli/internal/display"
	"council-cli/internal/tui"

	"gopkg.in/natefinch/lumberjack.v2"
)

const version = "0.1.0"

var activeProfile string

func main() {
	args := os.Args[1:]

	// Parse global flags first (--profile)
	args = parseGlobalFlags(args)

	setupLogging()

	// No args → launch interactive mode (default)
	if len(args) == 0 {
		if err := tui.Run(version, activeProfile); err != nil {
			display.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	// Explicit -i flag also launches interactive mode
	if args[0] == "-i" || args[0] == "--interactive" || args[0] == "interactive" {
		if err := tui.Run(version, activeProfile); err != nil {
			display.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	var err error

	switch args[0] {
	case "login":
		err = cmdLogin(args[1:])
	case "logout":
		err = cmdLogout()
	case "ask":
		err = cmdAsk(args[1:])
	case "conversations", "ls":
		err = cmdConversations()
	case "new":
		err = cmdNew()
	case "show":
		err = cmdShow(args[1:])
	case "upload":
		err = cmdUpload(args[1:])
	case "pdfs":
		err = cmdPdfs(args[1:])
	case "rm-pdf":
		err = cmdRmPdf(args[1:])
	case "config":
		err = cmdConfig()
	case "profiles":
		err = cmdProfiles()
	case "help", "--help", "-h":
		printUsage()
	case "version", "--version", "-v":
		fmt.Printf("council %s\n", version)
	default:
		display.Error(fmt.Sprintf("Unknown command: %s", args[0]))
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			forgetSession()
			err = fmt.Errorf("session expired. Run: council%s login <server-url>", profileFlag())
		}
		display.Error(err.Error())
		os.Exit(1)
	}
}

// setupLogging routes slog to a rotating file under ~/.council. Stdout is
// reserved for command output.
func setupLogging() {
	path, err := config.LogPath()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}
	level := slog.LevelInfo
	if os.Getenv("COUNCIL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     14, // days
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// forgetSession drops the stored credential after a 401.
func forgetSession() {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return
	}
	cfg.ForgetToken()
	cfg.Save()
}

func authedClient() (*config.Config, *api.Client, error) {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, api.NewClient(cfg.Server, cfg.BearerToken()), nil
}

// ─── login ──────────────────────────────────────────────────────────────────

func cmdLogin(args []string) error {
	var password string
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-p", "--password":
			if i+1 < len(args) {
				i++
				password = args[i]
			} else {
				return fmt.Errorf("--password requires a value")
			}
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		fmt.Println("Usage: council login <url> [-p <password>]")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  council login http://localhost:8001")
		fmt.Println("  council login https://council.example.com -p secret")
		return nil
	}

	server := strings.TrimRight(positional[0], "/")

	if password == "" {
		fmt.Print("Password: ")
		fmt.Scanln(&password)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	fmt.Println()
	display.Spinner("Authenticating...")

	client := api.NewClientWithServer(server)
	loginResp, err := client.Login(password)
	if err != nil {
		display.ClearLine()
		return fmt.Errorf("authentication failed: %w", err)
	}

	display.ClearLine()
	display.Success("Authenticated successfully")

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	cfg.Server = server
	if err := cfg.StoreToken(loginResp.Token); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	display.Info("Server:", server)
	fmt.Println()
	fmt.Printf("  %sNext:%s Run %scouncil%s ask \"<question>\"%s or just %scouncil%s for interactive mode.\n\n",
		display.Dim, display.Reset, display.Cyan, profileFlag(), display.Reset, display.Cyan, display.Reset)

	return nil
}

// ─── logout ─────────────────────────────────────────────────────────────────

func cmdLogout() error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.ForgetToken(); err != nil {
		return err
	}
	cfg.LastConversation = ""
	if err := cfg.Save(); err != nil {
		return err
	}
	display.Success("Logged out")
	return nil
}

// ─── ask ────────────────────────────────────────────────────────────────────

func cmdAsk(args []string) error {
	var conversationID string
	var verbose bool
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--conversation":
			if i+1 < len(args) {
				i++
				conversationID = args[i]
			} else {
				return fmt.Errorf("--conversation requires a value")
			}
		case "--verbose", "-V":
			verbose = true
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		fmt.Println("Usage: council ask <question> [-c <conversation-id>] [--verbose]")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println(`  council ask "What are the tradeoffs of event sourcing?"`)
		fmt.Println(`  council ask "And for small teams?" -c <conversation-id>`)
		return nil
	}
	content := strings.Join(positional, " ")

	cfg, client, err := authedClient()
	if err != nil {
		return err
	}

	if conversationID == "" {
		conversationID = cfg.LastConversation
	}
	if conversationID == "" {
		fmt.Println()
		display.Spinner("Starting a new conversation...")
		conv, err := client.CreateConversation()
		if err != nil {
			display.ClearLine()
			return fmt.Errorf("creating conversation: %w", err)
		}
		conversationID = conv.ID
		display.ClearLine()
		display.Success(fmt.Sprintf("Conversation: %s", conversationID))
	} else {
		fmt.Println()
		display.Success(fmt.Sprintf("Continuing conversation: %s", conversationID))
	}

	cfg.LastConversation = conversationID
	_ = cfg.Save()

	fmt.Printf("\n %s── LLM Council ───────────────────────────────────────────────────────────%s\n", display.Dim, display.Reset)
	fmt.Println()
	fmt.Printf("    %sQuestion:%s %s\n", display.Dim, display.Reset, content)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sd := api.NewStreamDisplay(verbose)
	err = client.SendMessageStream(ctx, conversationID, content, sd.HandleEvent)

	fmt.Println()
	fmt.Printf(" %s──────────────────────────────────────────────────────────────────────────%s\n", display.Dim, display.Reset)

	if err != nil {
		return fmt.Errorf("stream error: %w", err)
	}
	if sd.ErrMsg != "" {
		return fmt.Errorf("council error: %s", sd.ErrMsg)
	}

	if sd.Title != "" {
		display.Info("Title:", sd.Title)
	}
	fmt.Printf("\n  %sTip:%s Run %scouncil show%s to review the full conversation.\n\n",
		display.Dim, display.Reset, display.Cyan, display.Reset)

	return nil
}

// ─── conversations ──────────────────────────────────────────────────────────

func cmdConversations() error {
	cfg, client, err := authedClient()
	if err != nil {
		return err
	}

	list, err := client.ListConversations()
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	display.Header(fmt.Sprintf("Conversations (%d)", len(list)))

	if len(list) == 0 {
		display.Warn("No conversations yet.")
		return nil
	}

	for _, c := range list {
		marker := " "
		if c.ID == cfg.LastConversation {
			marker = display.Green + "●" + display.Reset
		}
		fmt.Printf("\n  %s %s%s%s  %s(%d messages)%s\n", marker, display.Bold, c.DisplayTitle(), display.Reset, display.Dim, c.MessageCount, display.Reset)
		fmt.Printf("      %s%s  %s%s\n", display.Dim, c.ID, c.CreatedAt, display.Reset)
	}

	fmt.Println()
	fmt.Printf("  %sTip:%s Run %scouncil ask \"<question>\" -c <id>%s to continue one.\n\n",
		display.Dim, display.Reset, display.Cyan, display.Reset)

	return nil
}

// ─── new ────────────────────────────────────────────────────────────────────

func cmdNew() error {
	cfg, client, err := authedClient()
	if err != nil {
		return err
	}

	conv, err := client.CreateConversation()
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}

	cfg.LastConversation = conv.ID
	if err := cfg.Save(); err != nil {
		return err
	}

	display.Success(fmt.Sprintf("Conversation created: %s", conv.ID))
	return nil
}

// ─── show ───────────────────────────────────────────────────────────────────

func cmdShow(args []string) error {
	cfg, client, err := authedClient()
	if err != nil {
		return err
	}

	conversationID := ""
	if len(args) > 0 {
		conversationID = args[0]
	} else if cfg.LastConversation != "" {
		conversationID = cfg.LastConversation
	} else {
		fmt.Println("Usage: council show [conversation-id]")
		return nil
	}

	conv, err := client.GetConversation(conversationID)
	if err != nil {
		return fmt.Errorf("fetching conversation: %w", err)
	}

	title := conv.Title
	if title == "" {
		title = "New Conversation"
	}
	display.Header(fmt.Sprintf("Conversation: %s", title))
	display.Info("ID:", conv.ID)
	display.Info("Created:", conv.CreatedAt)
	if len(conv.PdfContexts) > 0 {
		for _, p := range conv.PdfContexts {
			display.Info("PDF:", fmt.Sprintf("%s (%s)", p.Filename, p.ID))
		}
	}

	for _, msg := range conv.Messages {
		switch msg.Role {
		case council.RoleUser:
			fmt.Printf("\n  %s❯%s %s\n", display.Cyan, display.Reset, msg.Content)
		case council.RoleAssistant:
			if len(msg.Stage1) > 0 {
				names := make([]string, 0, len(msg.Stage1))
				for _, r := range msg.Stage1 {
					names = append(names, council.ShortModelName(r.Model))
				}
				fmt.Printf("\n    %s%s · %s%s\n", display.Dim, display.StageLabel(1), strings.Join(names, ", "), display.Reset)
			}
			if msg.Metadata != nil && len(msg.Metadata.AggregateRankings) > 0 {
				fmt.Printf("    %s%s%s\n", display.Dim, display.StageLabel(2), display.Reset)
			}
			if msg.Stage3 != nil {
				fmt.Printf("\n  %s💬 %s:%s\n", display.Green, council.ShortModelName(msg.Stage3.Model), display.Reset)
				for _, line := range strings.Split(api.RenderMarkdown(msg.Stage3.Response), "\n") {
					fmt.Printf("  %s\n", line)
				}
			}
		}
	}

	fmt.Println()
	return nil
}

// ─── upload / rm-pdf ────────────────────────────────────────────────────────

func cmdUpload(args []string) error {
	var conversationID string
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--conversation":
			if i+1 < len(args) {
				i++
				conversationID = args[i]
			} else {
				return fmt.Errorf("--conversation requires a value")
			}
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		fmt.Println("Usage: council upload <file.pdf> [-c <conversation-id>]")
		return nil
	}
	path := positional[0]

	cfg, client, err := authedClient()
	if err != nil {
		return err
	}
	if conversationID == "" {
		conversationID = cfg.LastConversation
	}
	if conversationID == "" {
		return fmt.Errorf("no conversation. Run: council new")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	display.Spinner("Uploading " + filepath.Base(path) + "...")
	resp, err := client.UploadPDF(conversationID, filepath.Base(path), f)
	display.ClearLine()
	if err != nil {
		return fmt.Errorf("uploading pdf: %w", err)
	}

	display.Success(fmt.Sprintf("Attached %s", resp.Pdf.Filename))
	display.Info("PDF ID:", resp.Pdf.ID)
	if resp.Pdf.Summary != "" {
		display.Info("Summary:", resp.Pdf.Summary)
	}
	return nil
}

func cmdPdfs(args []string) error {
	conversationID := ""
	if len(args) > 0 {
		conversationID = args[0]
	}

	cfg, client, err := authedClient()
	if err != nil {
		return err
	}
	if conversationID == "" {
		conversationID = cfg.LastConversation
	}
	if conversationID == "" {
		return fmt.Errorf("no conversation. Run: council new")
	}

	conv, err := client.GetConversation(conversationID)
	if err != nil {
		return fmt.Errorf("fetching conversation: %w", err)
	}

	if len(conv.PdfContexts) == 0 {
		fmt.Println("No PDFs attached to this conversation.")
		return nil
	}

	display.Header(fmt.Sprintf("PDFs (%d)", len(conv.PdfContexts)))
	for _, p := range conv.PdfContexts {
		fmt.Printf("  %s📄 %s%s\n", display.Bold, p.Filename, display.Reset)
		display.Info("  ID:", p.ID)
		if p.Summary != "" {
			display.Info("  Summary:", p.Summary)
		}
		fmt.Println()
	}
	return nil
}

func cmdRmPdf(args []string) error {
	var conversationID string
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--conversation":
			if i+1 < len(args) {
				i++
				conversationID = args[i]
			} else {
				return fmt.Errorf("--conversation requires a value")
			}
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		fmt.Println("Usage: council rm-pdf <pdf-id> [-c <conversation-id>]")
		return nil
	}

	cfg, client, err := authedClient()
	if err != nil {
		return err
	}
	if conversationID == "" {
		conversationID = cfg.LastConversation
	}
	if conversationID == "" {
		return fmt.Errorf("no conversation. Run: council new")
	}

	if err := client.RemovePDF(conversationID, positional[0]); err != nil {
		return fmt.Errorf("removing pdf: %w", err)
	}
	display.Success("PDF detached")
	return nil
}

// ─── config ─────────────────────────────────────────────────────────────────

func cmdConfig() error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	display.Header("Council CLI Configuration")

	display.Info("Profile:", config.ProfileName(activeProfile))

	server := cfg.Server
	if server == "" {
		server = display.Dim + "(not set)" + display.Reset
	}
	display.Info("Server:", server)

	token := display.Dim + "(not set)" + display.Reset
	if t := cfg.BearerToken(); t != "" {
		end := 12
		if len(t) < end {
			end = len(t)
		}
		token = t[:end] + "..."
	}
	display.Info("Token:", token)

	last := cfg.LastConversation
	if last == "" {
		last = display.Dim + "(none)" + display.Reset
	}
	display.Info("Last Conversation:", last)
	fmt.Println()

	return nil
}

// ─── profiles ───────────────────────────────────────────────────────────────

func cmdProfiles() error {
	profiles, err := config.ListProfiles()
	if err != nil {
		return err
	}

	display.Header(fmt.Sprintf("Profiles (%d)", len(profiles)))

	if len(profiles) == 0 {
		display.Warn("No profiles found.")
		return nil
	}

	for _, p := range profiles {
		marker := " "
		if p == config.ProfileName(activeProfile) {
			marker = display.Green + "●" + display.Reset
		}
		fmt.Printf("  %s %s\n", marker, p)
	}
	fmt.Println()

	return nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func parseGlobalFlags(args []string) []string {
	var remaining []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--profile" {
			if i+1 < len(args) {
				i++
				activeProfile = args[i]
			}
			continue
		}
		remaining = append(remaining, args[i])
	}
	return remaining
}

func profileFlag() string {
	if activeProfile == "" {
		return ""
	}
	return " --profile " + activeProfile
}

// ─── usage ──────────────────────────────────────────────────────────────────

func printUsage() {
	fmt.Printf(`%sCouncil CLI%s — ask a council of LLMs, get a ranked, synthesized answer (v%s)

%sUsage:%s
  council                                            Launch interactive mode (default)
  council [--profile <name>] <command> [arguments]   Run a specific command

%sGetting Started:%s
  login <url> [-p <password>]  Authenticate against a council server
  config                       Show current configuration
  logout                       Forget the stored token

%sAsking:%s
  ask "<question>"          Send a question through the three-stage pipeline
    -c, --conversation <id> Continue an existing conversation
    --verbose               Print every model's answer and the peer rankings

%sConversations:%s
  conversations             List your conversations
  new                       Start a new conversation
  show [conversation-id]    Print a conversation transcript (defaults to last)

%sPDF context:%s
  upload <file.pdf>         Attach a PDF to the conversation
  pdfs [conversation-id]    List attached PDFs
  rm-pdf <pdf-id>           Detach a PDF

%sProfiles:%s
  profiles                  List all config profiles
  --profile <name>          Use a named config profile (default: unnamed)

%sExamples:%s
  council                                      # Start interactive mode
  council login http://localhost:8001
  council ask "What are the tradeoffs of event sourcing?"
  council ask "And for small teams?" -c <conversation-id>
  council conversations
  council show

`, display.Bold, display.Reset, version,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset,
		display.Cyan, display.Reset)
}
