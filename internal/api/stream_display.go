package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"council-cli/internal/council"
)

// StreamDisplay renders council stream events as clean terminal output for
// the non-interactive `ask` command. The TUI has its own renderer.
type StreamDisplay struct {
	verbose bool

	stage2  []council.Stage2Ranking
	meta    *council.Metadata
	started map[string]bool

	// FinalAnswer holds the stage 3 synthesis once it arrives.
	FinalAnswer string
	// ErrMsg holds the server error message if the stream failed.
	ErrMsg string
	// Title holds the conversation title once the server generates one.
	Title string
}

// NewStreamDisplay returns a display. When verbose is true, full stage 1
// responses and the de-anonymized stage 2 rankings are printed; otherwise
// only progress lines and the final answer appear.
func NewStreamDisplay(verbose bool) *StreamDisplay {
	return &StreamDisplay{
		verbose: verbose,
		started: make(map[string]bool),
	}
}

// HandleEvent is the StreamCallback for SendMessageStream.
func (d *StreamDisplay) HandleEvent(ev *StreamEvent) {
	switch ev.Type {
	case EventStage1Start:
		d.stageStart(ev.Type, "Stage 1 · independent responses")

	case EventStage1Complete:
		responses, err := ev.Stage1Data()
		if err != nil {
			fmt.Printf("  ✗ bad stage 1 payload: %v\n", err)
			return
		}
		fmt.Printf("  ✓ Stage 1 complete (%d models responded)\n", len(responses))
		if d.verbose {
			for _, r := range responses {
				fmt.Println()
				fmt.Printf("  ── %s ──\n", council.ShortModelName(r.Model))
				fmt.Println(RenderMarkdown(r.Response))
			}
			fmt.Println()
		}

	case EventStage2Start:
		d.stageStart(ev.Type, "Stage 2 · peer review")

	case EventStage2Complete:
		rankings, err := ev.Stage2Data()
		if err != nil {
			fmt.Printf("  ✗ bad stage 2 payload: %v\n", err)
			return
		}
		d.stage2 = rankings
		if meta, err := ev.MetadataData(); err == nil {
			d.meta = meta
		}
		fmt.Printf("  ✓ Stage 2 complete (%d rankings collected)\n", len(rankings))
		d.printAggregate()
		if d.verbose {
			d.printRankings()
		}

	case EventStage3Start:
		d.stageStart(ev.Type, "Stage 3 · final synthesis")

	case EventStage3Complete:
		final, err := ev.Stage3Data()
		if err != nil {
			fmt.Printf("  ✗ bad stage 3 payload: %v\n", err)
			return
		}
		d.FinalAnswer = final.Response
		fmt.Printf("  ✓ Stage 3 complete (chairman: %s)\n", council.ShortModelName(final.Model))
		fmt.Println()
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println(RenderMarkdown(final.Response))
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	case EventTitleComplete:
		var title struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(ev.Data, &title); err == nil && title.Title != "" {
			d.Title = title.Title
		}

	case EventComplete:
		// Terminal marker; SendMessageStream stops after this.

	case EventError:
		d.ErrMsg = ev.Message
		fmt.Printf("  ✗ %s\n", ev.Message)
	}
}

func (d *StreamDisplay) stageStart(key, label string) {
	if d.started[key] {
		return
	}
	d.started[key] = true
	fmt.Printf("  ⟳ %s\n", label)
}

// printAggregate prints the consensus leaderboard from stage 2 metadata.
func (d *StreamDisplay) printAggregate() {
	if d.meta == nil || len(d.meta.AggregateRankings) == 0 {
		return
	}
	ranked := make([]council.AggregateRanking, len(d.meta.AggregateRankings))
	copy(ranked, d.meta.AggregateRankings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AverageRank < ranked[j].AverageRank
	})

	fmt.Println()
	fmt.Println("  🏅 Council ranking:")
	for i, r := range ranked {
		fmt.Printf("     %d. %-24s avg rank %.2f (%d votes)\n",
			i+1, council.ShortModelName(r.Model), r.AverageRank, r.RankingsCount)
	}
	fmt.Println()
}

// printRankings prints each reviewer's full evaluation with the anonymous
// labels replaced by real model names.
func (d *StreamDisplay) printRankings() {
	if len(d.stage2) == 0 {
		return
	}
	var labels map[string]string
	if d.meta != nil {
		labels = d.meta.LabelToModel
	}
	for _, r := range d.stage2 {
		fmt.Printf("  ── review by %s ──\n", council.ShortModelName(r.Model))
		text := council.DeAnonymize(r.Ranking, labels)
		fmt.Println(RenderMarkdown(text))
		if len(r.ParsedRanking) > 0 {
			parts := make([]string, 0, len(r.ParsedRanking))
			for _, label := range r.ParsedRanking {
				parts = append(parts, council.LabelModel(label, labels))
			}
			fmt.Printf("     order: %s\n", strings.Join(parts, " > "))
		}
		fmt.Println()
	}
}
