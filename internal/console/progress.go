package console

import (
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// Progress is a spinner whose text tracks the streamed row count. Update
// may be called from any goroutine.
type Progress struct {
	mu      sync.Mutex
	spinner *pterm.SpinnerPrinter
	last    time.Time
}

// StartProgress starts a spinner showing text. Without a terminal, or if
// the spinner cannot start, the returned Progress is silent.
func StartProgress(text string) *Progress {
	p := &Progress{}
	if !pterm.Output {
		return p
	}
	sp, err := pterm.DefaultSpinner.WithRemoveWhenDone(false).Start(text)
	if err == nil {
		p.spinner = sp
	}
	return p
}

// Update shows the row count, at most every 50ms.
func (p *Progress) Update(rows int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner == nil {
		return
	}
	now := time.Now()
	if now.Sub(p.last) < 50*time.Millisecond {
		return
	}
	p.last = now
	p.spinner.UpdateText(LoadedRows(rows))
}

func (p *Progress) Done(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner == nil {
		return
	}
	p.spinner.Success(text)
	p.spinner = nil
}

func (p *Progress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner == nil {
		return
	}
	p.spinner.Fail(err.Error())
	p.spinner = nil
}
