// ABOUTME: Dock state - open panel stack and minimized chip set
// ABOUTME: One entry per conversation across both collections, widths recomputed on every mutation

package panels

import (
	"log/slog"
	"sync"
)

// PanelSession is the dock's view of one side-thread panel.
type PanelSession struct {
	ConversationID       string
	ParentConversationID string
	ParentMessageID      string
	Minimized            bool

	// Width is the current allocated width; DockOffset is the distance from
	// the dock's right edge. For minimized panels both freeze at the values
	// captured when the panel was minimized, so the chip lines up under
	// where its panel was.
	Width      int
	DockOffset int
}

// Dock tracks the open side-thread panels (oldest first) and the minimized
// chips (minimization order). A conversation lives in at most one of the
// two, at most once.
type Dock struct {
	mu        sync.Mutex
	viewport  int
	open      []*PanelSession
	minimized []*PanelSession
	logger    *slog.Logger
}

// NewDock creates a dock for the given viewport width.
func NewDock(viewportWidth int) *Dock {
	return &Dock{
		viewport: viewportWidth,
		logger:   slog.Default().With("component", "panels"),
	}
}

// SetViewport updates the viewport width and recomputes the layout.
func (d *Dock) SetViewport(width int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = width
	d.recomputeLocked()
}

// Open pushes a panel for the conversation onto the newest end of the open
// stack. If the conversation is already open this is a no-op; if it is
// minimized it is restored instead. A thread is never opened twice.
func (d *Dock) Open(conversationID, parentConversationID, parentMessageID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.findOpenLocked(conversationID) >= 0 {
		return
	}
	if i := d.findMinimizedLocked(conversationID); i >= 0 {
		d.restoreLocked(i)
		return
	}

	d.open = append(d.open, &PanelSession{
		ConversationID:       conversationID,
		ParentConversationID: parentConversationID,
		ParentMessageID:      parentMessageID,
	})
	d.recomputeLocked()
	d.logger.Debug("opened panel", "conversation_id", conversationID, "open", len(d.open))
}

// Minimize moves an open panel to the minimized set, freezing its width and
// offset so the chip aligns under the panel's last position. Unknown ids
// are ignored.
func (d *Dock) Minimize(conversationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.findOpenLocked(conversationID)
	if i < 0 {
		return
	}

	panel := d.open[i]
	panel.Minimized = true
	// Offset captured now: cumulative width+gap of every panel to its right
	offset := 0
	for j := i + 1; j < len(d.open); j++ {
		offset += d.open[j].Width + panelGap
	}
	panel.DockOffset = offset

	d.open = append(d.open[:i], d.open[i+1:]...)
	d.minimized = append(d.minimized, panel)
	d.recomputeLocked()
	d.logger.Debug("minimized panel", "conversation_id", conversationID, "offset", offset)
}

// Restore moves a minimized panel back to the newest position of the open
// stack, not its original position. Unknown ids are ignored.
func (d *Dock) Restore(conversationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i := d.findMinimizedLocked(conversationID); i >= 0 {
		d.restoreLocked(i)
	}
}

func (d *Dock) restoreLocked(i int) {
	panel := d.minimized[i]
	panel.Minimized = false
	d.minimized = append(d.minimized[:i], d.minimized[i+1:]...)
	d.open = append(d.open, panel)
	d.recomputeLocked()
	d.logger.Debug("restored panel", "conversation_id", panel.ConversationID)
}

// Close removes the panel from whichever collection holds it. The
// underlying conversation is untouched.
func (d *Dock) Close(conversationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i := d.findOpenLocked(conversationID); i >= 0 {
		d.open = append(d.open[:i], d.open[i+1:]...)
		d.recomputeLocked()
		return
	}
	if i := d.findMinimizedLocked(conversationID); i >= 0 {
		d.minimized = append(d.minimized[:i], d.minimized[i+1:]...)
	}
}

// Contains reports whether the conversation has a panel anywhere in the
// dock.
func (d *Dock) Contains(conversationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findOpenLocked(conversationID) >= 0 || d.findMinimizedLocked(conversationID) >= 0
}

// OpenPanels returns the open stack oldest first, as copies.
func (d *Dock) OpenPanels() []PanelSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PanelSession, len(d.open))
	for i, p := range d.open {
		out[i] = *p
	}
	return out
}

// MinimizedPanels returns the minimized chips in minimization order, as
// copies.
func (d *Dock) MinimizedPanels() []PanelSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PanelSession, len(d.minimized))
	for i, p := range d.minimized {
		out[i] = *p
	}
	return out
}

func (d *Dock) findOpenLocked(conversationID string) int {
	for i, p := range d.open {
		if p.ConversationID == conversationID {
			return i
		}
	}
	return -1
}

func (d *Dock) findMinimizedLocked(conversationID string) int {
	for i, p := range d.minimized {
		if p.ConversationID == conversationID {
			return i
		}
	}
	return -1
}

// recomputeLocked reassigns widths and offsets to the open stack. Minimized
// panels keep their frozen values.
func (d *Dock) recomputeLocked() {
	widths := computeWidths(len(d.open), d.viewport)
	for i, p := range d.open {
		p.Width = widths[i]
	}
	offset := 0
	for i := len(d.open) - 1; i >= 0; i-- {
		d.open[i].DockOffset = offset
		offset += d.open[i].Width + panelGap
	}
}
