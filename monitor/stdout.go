package monitor

import (
	"fmt"
	"os"
	"sync"

	"packastack/orchestrator"

	"golang.org/x/term"
)

// StdoutUI implements UI as a single overwritten progress line, for
// --no-tui mode or when stdout isn't a terminal. The line width comes
// from golang.org/x/term rather than a fixed 80 columns.
type StdoutUI struct {
	mu sync.Mutex
}

// NewStdoutUI returns a StdoutUI.
func NewStdoutUI() *StdoutUI {
	return &StdoutUI{}
}

func (ui *StdoutUI) Start() error { return nil }

func (ui *StdoutUI) Stop() {
	fmt.Println()
}

func (ui *StdoutUI) Update(snap Snapshot) {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	width := terminalWidth()
	line := fmt.Sprintf("run=%s %s/%s %d/%d done (success=%d failed=%d skipped=%d blocked=%d running=%d)",
		snap.RunID, snap.Target, snap.Series, snap.Finished(), snap.Total,
		snap.Counts[orchestrator.StatusSuccess], snap.Counts[orchestrator.StatusFailed],
		snap.Counts[orchestrator.StatusSkipped], snap.Counts[orchestrator.StatusBlocked],
		snap.Counts[orchestrator.StatusRunning])

	if len(line) > width {
		line = line[:width]
	}
	fmt.Printf("\r%-*s", width, line)

	for _, ps := range snap.RecentFailures {
		fmt.Printf("\n  FAILED %s (%s): %s", ps.Name, ps.FailureKind, ps.Message)
	}
}

// terminalWidth returns the current terminal width, falling back to 80
// columns when stdout isn't a terminal (e.g. piped output).
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
