// Package display holds ANSI output helpers for the non-interactive
// commands. The TUI has its own lipgloss styles.
package display

import (
	"fmt"
	"os"
	"strings"
)

const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

func Header(text string) {
	fmt.Printf("\n%s%s%s\n", Bold+Cyan, text, Reset)
	fmt.Println(strings.Repeat("─", min(len(text)+4, 80)))
}

func SubHeader(text string) {
	fmt.Printf("%s%s%s\n", Bold+White, text, Reset)
}

func Success(text string) {
	fmt.Printf("%s✓%s %s\n", Green, Reset, text)
}

func Error(text string) {
	fmt.Fprintf(os.Stderr, "%s✗%s %s\n", Red, Reset, text)
}

func Warn(text string) {
	fmt.Printf("%s!%s %s\n", Yellow, Reset, text)
}

func Info(label, value string) {
	fmt.Printf("  %s%-20s%s %s\n", Dim, label, Reset, value)
}

func Spinner(text string) {
	fmt.Printf("\r%s⟳%s %s", Yellow, Reset, text)
}

func ClearLine() {
	fmt.Print("\r\033[K")
}

// StageLabel names a council pipeline stage for streaming output.
func StageLabel(stage int) string {
	switch stage {
	case 1:
		return Magenta + "Stage 1" + Reset + " · independent responses"
	case 2:
		return Blue + "Stage 2" + Reset + " · peer review"
	case 3:
		return Green + "Stage 3" + Reset + " · final synthesis"
	default:
		return fmt.Sprintf("Stage %d", stage)
	}
}
