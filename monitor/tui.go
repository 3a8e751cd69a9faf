package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"packastack/orchestrator"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// TUI implements UI using tview/tcell: a header (run identity and
// elapsed time), a progress section (per-status counts), and a failure
// log tail.
type TUI struct {
	app *tview.Application
	header *tview.TextView
	progress *tview.TextView
	failures *tview.TextView
	layout *tview.Flex

	mu sync.Mutex
	started time.Time
	stopped bool
	onQuit func()
}

// NewTUI returns an unstarted TUI. onQuit, if non-nil, is invoked when
// the user presses q or Ctrl+C.
func NewTUI(onQuit func()) *TUI {
	return &TUI{onQuit: onQuit}
}

func (ui *TUI) Start() error {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	ui.started = time.Now()
	ui.app = tview.NewApplication()

	ui.header = tview.NewTextView().SetDynamicColors(true)
	ui.header.SetBorder(true).SetTitle(" packastack build ").SetTitleAlign(tview.AlignLeft)
	ui.header.SetText("[yellow]waiting for run state...[white]")

	ui.progress = tview.NewTextView().SetDynamicColors(true)
	ui.progress.SetBorder(true).SetTitle(" progress ").SetTitleAlign(tview.AlignLeft)

	ui.failures = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	ui.failures.SetBorder(true).SetTitle(" recent failures ").SetTitleAlign(tview.AlignLeft)
	ui.failures.SetText("none yet")

	ui.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.header, 3, 0, false).
		AddItem(ui.progress, 8, 0, false).
		AddItem(ui.failures, 0, 1, false)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC || (event.Key() == tcell.KeyRune && (event.Rune() == 'q' || event.Rune() == 'Q')) {
			ui.app.Stop()
			if ui.onQuit != nil {
				go ui.onQuit()
			}
			return nil
		}
		return event
	})

	go func() {
		_ = ui.app.SetRoot(ui.layout, true).EnableMouse(true).Run()
	}()
	time.Sleep(50 * time.Millisecond)
	return nil
}

func (ui *TUI) Stop() {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	if ui.stopped {
		return
	}
	ui.stopped = true
	if ui.app != nil {
		ui.app.Stop()
	}
}

func (ui *TUI) Update(snap Snapshot) {
	ui.mu.Lock()
	if ui.app == nil || ui.stopped {
		ui.mu.Unlock()
		return
	}
	app := ui.app
	elapsed := time.Since(ui.started).Round(time.Second)
	ui.mu.Unlock()

	headerText := fmt.Sprintf("[yellow]%s[white] on [yellow]%s[white]  run=%s  elapsed=%s  done=%d/%d",
		snap.Target, snap.Series, snap.RunID, elapsed, snap.Finished(), snap.Total)

	progressText := fmt.Sprintf(
		"[green]success:[white]  %3d\n"+
			"[red]failed:[white]   %3d\n"+
			"[yellow]skipped:[white]  %3d\n"+
			"[yellow]blocked:[white]  %3d\n"+
			"[blue]running:[white]  %3d  %s\n"+
			"pending:  %3d",
		snap.Counts[orchestrator.StatusSuccess],
		snap.Counts[orchestrator.StatusFailed],
		snap.Counts[orchestrator.StatusSkipped],
		snap.Counts[orchestrator.StatusBlocked],
		snap.Counts[orchestrator.StatusRunning], strings.Join(snap.Running, ", "),
		snap.Counts[orchestrator.StatusPending],
	)

	var failuresText strings.Builder
	if len(snap.RecentFailures) == 0 {
		failuresText.WriteString("none yet")
	}
	for _, ps := range snap.RecentFailures {
		fmt.Fprintf(&failuresText, "[red]%s[white] (%s): %s\n", ps.Name, ps.FailureKind, ps.Message)
	}

	app.QueueUpdateDraw(func() {
		ui.header.SetText(headerText)
		ui.progress.SetText(progressText)
		ui.failures.SetText(failuresText.String())
	})
}
