// Package jwt implements the engine's three HS256 token contexts: access,
// refresh, and temp. Each context signs with its own secret, so a token minted
// in one context can never validate in another even when the payloads overlap.
//
// # Components
//
//   - [Manager] — signs and parses all three token kinds.
//   - [AccessClaims], [RefreshClaims], [TempClaims] — per-kind payloads.
//
// # What this package must NOT do
//
//   - Decide authorization outcomes; it only reports valid claims.
//   - Touch storage or the network.
package jwt
