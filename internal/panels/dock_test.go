// ABOUTME: Dock state tests - identity invariant, minimize/restore ordering
// ABOUTME: Offset capture and layout recomputation on every mutation

package panels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openIDs(d *Dock) []string {
	panels := d.OpenPanels()
	ids := make([]string, len(panels))
	for i, p := range panels {
		ids[i] = p.ConversationID
	}
	return ids
}

func minimizedIDs(d *Dock) []string {
	panels := d.MinimizedPanels()
	ids := make([]string, len(panels))
	for i, p := range panels {
		ids[i] = p.ConversationID
	}
	return ids
}

func TestDock_OpenIsIdempotent(t *testing.T) {
	d := NewDock(1600)

	d.Open("c2", "c1", "m1")
	d.Open("c2", "c1", "m1")

	assert.Equal(t, []string{"c2"}, openIDs(d))
	assert.Empty(t, minimizedIDs(d))
}

func TestDock_OpenWhileMinimizedRestores(t *testing.T) {
	d := NewDock(1600)
	d.Open("c2", "c1", "m1")
	d.Open("c3", "c1", "m2")
	d.Minimize("c2")

	// Opening a minimized conversation must not create a second panel
	d.Open("c2", "c1", "m1")

	assert.Equal(t, []string{"c3", "c2"}, openIDs(d))
	assert.Empty(t, minimizedIDs(d))
}

func TestDock_ThreePanelsAt1600ShareTheBudget(t *testing.T) {
	d := NewDock(1600)
	d.Open("c2", "c1", "m1")
	d.Open("c3", "c1", "m2")
	d.Open("c4", "c1", "m3")

	panels := d.OpenPanels()
	require.Len(t, panels, 3)

	total := (len(panels) - 1) * panelGap
	for _, p := range panels {
		assert.GreaterOrEqual(t, p.Width, panelMin)
		assert.LessOrEqual(t, p.Width, panelMax)
		total += p.Width
	}
	assert.LessOrEqual(t, total, availableWidth(1600))

	// Newest panel sits at the right edge; older panels stack leftward
	assert.Equal(t, 0, panels[2].DockOffset)
	assert.Equal(t, panels[2].Width+panelGap, panels[1].DockOffset)
	assert.Equal(t, panels[2].Width+panels[1].Width+2*panelGap, panels[0].DockOffset)
}

func TestDock_MinimizeCapturesOffsetAndRestoreAppendsNewest(t *testing.T) {
	d := NewDock(1600)
	d.Open("c2", "c1", "m1")
	d.Open("c3", "c1", "m2")
	d.Open("c4", "c1", "m3")

	// Offset at minimize time: everything to c3's right, gaps included
	wantOffset := d.OpenPanels()[2].Width + panelGap
	d.Minimize("c3")

	assert.Equal(t, []string{"c2", "c4"}, openIDs(d))
	chips := d.MinimizedPanels()
	require.Len(t, chips, 1)
	assert.Equal(t, "c3", chips[0].ConversationID)
	assert.True(t, chips[0].Minimized)
	assert.Equal(t, wantOffset, chips[0].DockOffset)

	// Restore goes to the newest end, not c3's original middle slot
	d.Restore("c3")
	assert.Equal(t, []string{"c2", "c4", "c3"}, openIDs(d))
	assert.Empty(t, minimizedIDs(d))
	assert.False(t, d.OpenPanels()[2].Minimized)
}

func TestDock_MinimizedChipKeepsFrozenValues(t *testing.T) {
	d := NewDock(1600)
	d.Open("c2", "c1", "m1")
	d.Open("c3", "c1", "m2")
	d.Minimize("c3")

	frozen := d.MinimizedPanels()[0]

	// Mutations to the open stack must not move the chip
	d.Open("c4", "c1", "m3")
	d.SetViewport(1200)

	chip := d.MinimizedPanels()[0]
	assert.Equal(t, frozen.Width, chip.Width)
	assert.Equal(t, frozen.DockOffset, chip.DockOffset)
}

func TestDock_CloseRemovesFromEitherCollection(t *testing.T) {
	d := NewDock(1600)
	d.Open("c2", "c1", "m1")
	d.Open("c3", "c1", "m2")
	d.Minimize("c3")

	d.Close("c2")
	d.Close("c3")

	assert.Empty(t, openIDs(d))
	assert.Empty(t, minimizedIDs(d))
	assert.False(t, d.Contains("c2"))
	assert.False(t, d.Contains("c3"))
}

func TestDock_MinimizeUnknownIsNoOp(t *testing.T) {
	d := NewDock(1600)
	d.Open("c2", "c1", "m1")

	d.Minimize("nope")
	d.Restore("nope")
	d.Close("nope")

	assert.Equal(t, []string{"c2"}, openIDs(d))
}

func TestDock_SetViewportRecomputesWidths(t *testing.T) {
	d := NewDock(2400)
	d.Open("c2", "c1", "m1")
	d.Open("c3", "c1", "m2")
	d.Open("c4", "c1", "m3")

	wide := d.OpenPanels()

	d.SetViewport(1440)
	narrow := d.OpenPanels()

	total := (len(narrow) - 1) * panelGap
	for i, p := range narrow {
		assert.LessOrEqual(t, p.Width, wide[i].Width)
		total += p.Width
	}
	assert.LessOrEqual(t, total, availableWidth(1440))
}
