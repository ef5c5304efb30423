// ABOUTME: Package doc for panels
// ABOUTME: Side-thread dock state and width allocation

// Package panels manages the dock of side-thread panels: which
// conversations are open or minimized, how wide each panel is, and how a
// text selection becomes a new docked side thread.
//
// The dock holds each conversation in at most one place. Open panels form
// a stack ordered oldest to newest; minimized panels keep the width and
// right-edge offset they had when minimized. Widths are recomputed on
// every mutation from a viewport budget that leaves the main pane at
// least 720px and caps the dock at 60% of the viewport.
package panels
