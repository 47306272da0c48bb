package main

import (
	"fmt"
)

// ANSI color helpers
const (
	violet = "\033[38;2;139;124;246m"
	gray   = "\033[38;5;242m"
	white  = "\033[1;37m"
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
)

func main() {
	info1 := white + "LLM Council " + gray + "v0.1.0" + reset
	info2 := gray + "localhost:8001" + reset

	fmt.Println()
	fmt.Println(bold + "═══ Pick a council logo ═══" + reset)

	// ── Option A: Gavel ──
	fmt.Println()
	fmt.Println(dim + "Option A — Gavel" + reset)
	fmt.Println()
	fmt.Printf("   %s▄██▄%s\n", gray, reset)
	fmt.Printf("   %s████%s%s▄▄▄▄▄▄%s    %s\n", gray, reset, violet, reset, info1)
	fmt.Printf("   %s▀██▀%s  %s▀▀▀▀%s    %s\n", gray, reset, violet, reset, info2)

	// ── Option B: Round table ──
	fmt.Println()
	fmt.Println(dim + "Option B — Round table" + reset)
	fmt.Println()
	fmt.Printf("   %s◉ ◉ ◉%s\n", gray, reset)
	fmt.Printf("  %s▐█████▌%s%s━━━▶%s   %s\n", gray, reset, violet, reset, info1)
	fmt.Printf("   %s▀▀▀▀▀%s         %s\n", gray, reset, info2)

	// ── Option C: Columns ──
	fmt.Println()
	fmt.Println(dim + "Option C — Columns" + reset)
	fmt.Println()
	fmt.Printf("   %s▄▄▄▄▄▄▄▄▄%s\n", violet, reset)
	fmt.Printf("   %s█ █ █ █ █%s   %s\n", gray, reset, info1)
	fmt.Printf("   %s▀▀▀▀▀▀▀▀▀%s   %s\n", violet, reset, info2)

	// ── Option D: Ballot ──
	fmt.Println()
	fmt.Println(dim + "Option D — Ballot" + reset)
	fmt.Println()
	fmt.Printf("   %s▄▀▀▀▄%s  %s▄▄▄%s\n", gray, reset, violet, reset)
	fmt.Printf("   %s█ %s✓%s █%s  %s███▌%s   %s\n", gray, white, gray, reset, violet, reset, info1)
	fmt.Printf("   %s▀▄▄▄▀%s  %s▀▀▀%s    %s\n", gray, reset, violet, reset, info2)

	fmt.Println()
	fmt.Println(dim + "Which one? (A/B/C/D)" + reset)
	fmt.Println()
}
