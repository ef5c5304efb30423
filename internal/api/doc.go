// Package api exposes the braid HTTP surface.
//
// REST endpoints cover conversation and message CRUD; POST /api/chat/stream
// streams completions as server-sent events (token, done, error) with
// periodic keep-alive comments; POST /api/chat is the non-streaming
// fallback. All endpoints except GET /api/health sit behind the bearer-token
// middleware and operate on the authenticated owner's data only.
//
// Error mapping: validation failures are 400 with a message, missing or
// foreign entities are 404, everything else is a masked 500.
package api
