// Package client is the Go client for the braid API.
//
// Beyond typed CRUD calls it carries the two stateful pieces the browser
// frontend also implements:
//
// Streaming sessions (StartStream) consume the SSE chat endpoint through a
// small state machine: idle → streaming → completed | stopped | errored.
// The token accumulator only grows while streaming; Stop settles the state
// before touching the network, so no text can appear after it returns.
// Keep-alive comments never reach the accumulator.
//
// Reconciliation (Reconcile) settles a finished session against persisted
// history: the streamed text is provisional until it is written back as an
// assistant message and page 1 of the conversation is refetched with
// server-assigned ids. Errored sessions are discarded.
package client
