// Package authflow is the credential-based authentication and account-verification
// core of a social application backend. It authenticates users by password or by a
// pre-verified federated identity, escalates a progressive lockout on repeated
// password failures, drives the one-time-code (OTP) lifecycle for account activation
// and password reset, and mints the signed bearer tokens that carry a session.
//
// The package is the public surface: [Engine], [Builder], [Config], the
// [CredentialStore] integration interface, and the sentinel errors callers branch on.
// All coordination internals — the lockout policy, the Redis-backed verification
// store, audit dispatch, metrics — live under internal/ and are never exported.
//
// # Architecture boundaries
//
// authflow decides; it does not route, render, or deliver. The HTTP layer, the
// persistent user database (reached through [CredentialStore]), and the outbound
// email transport (reached through the mail package's Mailer) are collaborators
// supplied at construction. Email dispatch is fire-and-forget: no login or OTP
// request ever waits on delivery.
//
// # Failure model
//
// Every non-success outcome is a typed, synchronous decision: compare with
// [errors.Is] against the sentinels in errors.go. Time-based refusals carry their
// wait as data ([LockoutError], [ThrottleError]); nothing in this package blocks
// waiting for a policy window to pass.
package authflow
