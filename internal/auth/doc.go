// Package auth resolves the owner behind API requests.
//
// Login, sessions, and token issuance live in an external service; braid
// only verifies the HS256 JWT it is handed and trusts the "sub" claim as the
// owner id. The HTTP middleware attaches that id to the request context,
// where handlers read it with OwnerFromContext.
//
// Generate exists for the init subcommand and tests; production tokens come
// from the external auth service signed with the shared secret.
package auth
