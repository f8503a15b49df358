package progress

import (
	"sync"

	"github.com/pterm/pterm"
)

// Bar manages a progress bar for tracking message processing. A disabled or
// zero-total bar is a no-op, so callers never need to branch on it.
type Bar struct {
	pb *pterm.ProgressbarPrinter
	mu sync.Mutex
}

// New creates a new progress bar when enabled and there is work to track.
func New(total int, title string, enabled bool) *Bar {
	if !enabled || total <= 0 {
		return &Bar{}
	}

	pb, _ := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(title).
		Start()

	return &Bar{pb: pb}
}

// Increment advances the bar by one processed message.
func (b *Bar) Increment() {
	if b.pb == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pb.Increment()
}

// SetLabel updates the bar title, typically with the current mailbox.
func (b *Bar) SetLabel(label string) {
	if b.pb == nil {
		return
	}
	if len(label) > 40 {
		label = label[:37] + "..."
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pb.UpdateTitle(label)
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if b.pb == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = b.pb.Stop()
}
