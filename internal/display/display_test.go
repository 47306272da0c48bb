package display

import (
	"strings"
	"testing"
)

func TestStageLabel(t *testing.T) {
	tests := []struct {
		stage    int
		contains string
		color    string
	}{
		{1, "independent responses", Magenta},
		{2, "peer review", Blue},
		{3, "final synthesis", Green},
	}

	for _, tt := range tests {
		label := StageLabel(tt.stage)
		if !strings.Contains(label, tt.contains) {
			t.Errorf("StageLabel(%d) = %q, expected to contain %q", tt.stage, label, tt.contains)
		}
		if !strings.Contains(label, tt.color) {
			t.Errorf("StageLabel(%d) = %q, expected ANSI-colored output", tt.stage, label)
		}
	}

	// Out-of-range stages fall back to a plain label
	unknown := StageLabel(7)
	if unknown != "Stage 7" {
		t.Errorf("StageLabel(7) = %q, expected %q", unknown, "Stage 7")
	}
}
