package api

import (
	"fmt"
	"strings"
)

const (
	ansiReset     = "\033[0m"
	ansiBold      = "\033[1m"
	ansiDim       = "\033[2m"
	ansiItalic    = "\033[3m"
	ansiUnderline = "\033[4m"
	ansiCyan      = "\033[36m"
	ansiBoldCyan  = "\033[1;36m"
)

// RenderMarkdown renders a complete markdown document for plain terminal
// output. Council stage results arrive whole, so there is no incremental
// line buffering here; the TUI uses glamour instead.
func RenderMarkdown(text string) string {
	var lines []string
	inCode := false
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, renderLine(line, &inCode))
	}
	return strings.Join(lines, "\n")
}

func renderLine(line string, inCode *bool) string {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, "```") {
		if !*inCode {
			*inCode = true
			lang := strings.TrimSpace(trimmed[3:])
			if lang != "" {
				return fmt.Sprintf("  %s┌─ %s ─%s", ansiDim, lang, ansiReset)
			}
			return fmt.Sprintf("  %s┌──%s", ansiDim, ansiReset)
		}
		*inCode = false
		return fmt.Sprintf("  %s└──%s", ansiDim, ansiReset)
	}

	if *inCode {
		return fmt.Sprintf("  %s│%s %s", ansiDim, ansiReset, line)
	}

	if strings.HasPrefix(trimmed, "#### ") {
		return fmt.Sprintf("  %s%s%s", ansiBold, trimmed[5:], ansiReset)
	}
	if strings.HasPrefix(trimmed, "### ") {
		return fmt.Sprintf("  %s%s%s", ansiBold, trimmed[4:], ansiReset)
	}
	if strings.HasPrefix(trimmed, "## ") {
		return fmt.Sprintf("\n  %s%s%s", ansiBoldCyan, trimmed[3:], ansiReset)
	}
	if strings.HasPrefix(trimmed, "# ") {
		return fmt.Sprintf("\n  %s%s%s", ansiBoldCyan, trimmed[2:], ansiReset)
	}

	if trimmed == "---" || trimmed == "***" || trimmed == "___" {
		return fmt.Sprintf("  %s────────────────────────────────────────%s", ansiDim, ansiReset)
	}

	if strings.HasPrefix(trimmed, "> ") {
		return fmt.Sprintf("  %s│%s %s", ansiDim, ansiReset, renderInline(trimmed[2:]))
	}

	indent := len(line) - len(strings.TrimLeft(line, " \t"))
	pad := strings.Repeat(" ", indent)

	if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
		return fmt.Sprintf("%s  • %s", pad, renderInline(trimmed[2:]))
	}

	if dotIdx := strings.Index(trimmed, ". "); dotIdx > 0 && dotIdx <= 3 {
		num := trimmed[:dotIdx]
		allDigit := true
		for _, c := range num {
			if c < '0' || c > '9' {
				allDigit = false
				break
			}
		}
		if allDigit {
			return fmt.Sprintf("%s  %s. %s", pad, num, renderInline(trimmed[dotIdx+2:]))
		}
	}

	return renderInline(line)
}

func renderInline(text string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		if i+3 < len(text) && text[i] == '*' && text[i+1] == '*' {
			end := strings.Index(text[i+2:], "**")
			if end > 0 {
				out.WriteString(ansiBold)
				out.WriteString(renderInline(text[i+2 : i+2+end]))
				out.WriteString(ansiReset)
				i += 4 + end
				continue
			}
		}

		if text[i] == '*' && (i == 0 || text[i-1] == ' ') {
			end := strings.IndexByte(text[i+1:], '*')
			if end > 0 {
				out.WriteString(ansiItalic)
				out.WriteString(text[i+1 : i+1+end])
				out.WriteString(ansiReset)
				i += 2 + end
				continue
			}
		}

		if text[i] == '`' {
			end := strings.IndexByte(text[i+1:], '`')
			if end >= 0 {
				out.WriteString(ansiDim)
				out.WriteString(text[i+1 : i+1+end])
				out.WriteString(ansiReset)
				i += 2 + end
				continue
			}
		}

		if text[i] == '[' {
			cb := strings.IndexByte(text[i:], ']')
			if cb > 1 && i+cb+1 < len(text) && text[i+cb+1] == '(' {
				cp := strings.IndexByte(text[i+cb+1:], ')')
				if cp > 0 {
					linkText := text[i+1 : i+cb]
					url := text[i+cb+2 : i+cb+1+cp]
					out.WriteString(ansiUnderline)
					out.WriteString(linkText)
					out.WriteString(ansiReset)
					out.WriteString(ansiDim)
					out.WriteString(" (")
					out.WriteString(url)
					out.WriteString(")")
					out.WriteString(ansiReset)
					i += cb + 1 + cp + 1
					continue
				}
			}
		}

		out.WriteByte(text[i])
		i++
	}
	return out.String()
}
