package api

import (
	"strings"
	"testing"
)

func TestRenderMarkdownBlocks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "h1 header",
			input: "# Overview",
			want:  []string{ansiBoldCyan, "Overview"},
		},
		{
			name:  "h3 header",
			input: "### Details",
			want:  []string{ansiBold, "Details"},
		},
		{
			name:  "bullet",
			input: "- first item",
			want:  []string{"• first item"},
		},
		{
			name:  "nested bullet keeps indent",
			input: "  - nested",
			want:  []string{"    • nested"},
		},
		{
			name:  "numbered list",
			input: "1. step one",
			want:  []string{"1. step one"},
		},
		{
			name:  "horizontal rule",
			input: "---",
			want:  []string{"────"},
		},
		{
			name:  "blockquote",
			input: "> quoted text",
			want:  []string{"│", "quoted text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderMarkdown(tt.input)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output %q missing %q", got, w)
				}
			}
		})
	}
}

func TestRenderMarkdownCodeFence(t *testing.T) {
	got := RenderMarkdown("```go\nfmt.Println(1)\n```")
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "┌─ go ─") {
		t.Errorf("open fence = %q", lines[0])
	}
	if !strings.Contains(lines[1], "│") || !strings.Contains(lines[1], "fmt.Println(1)") {
		t.Errorf("code line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "└──") {
		t.Errorf("close fence = %q", lines[2])
	}
}

func TestRenderMarkdownFenceSuppressesInline(t *testing.T) {
	// Markdown syntax inside a code block must come through verbatim.
	got := RenderMarkdown("```\n**not bold**\n```")
	if !strings.Contains(got, "**not bold**") {
		t.Errorf("inline formatting applied inside a fence: %q", got)
	}
}

func TestRenderInline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"bold", "a **strong** word", []string{ansiBold, "strong", ansiReset}},
		{"italic", "an *italic* word", []string{ansiItalic, "italic"}},
		{"inline code", "run `go test` now", []string{ansiDim, "go test"}},
		{"link", "see [docs](https://example.com)", []string{ansiUnderline, "docs", "https://example.com"}},
		{"plain passthrough", "2 * 3 equals 6", []string{"2 * 3 equals 6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderInline(tt.input)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("renderInline(%q) = %q, missing %q", tt.input, got, w)
				}
			}
		})
	}
}
