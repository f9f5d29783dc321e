// Package authflow sequences the multi-factor authentication flow gating
// access to decrypted vault material.
//
// An attempt walks password → biometric → two-factor, skipping factors the
// attempt configuration disables; the skip decision is taken once at
// BeginAttempt and never re-evaluated mid-flow. After every successful step
// the orchestrator re-evaluates which required steps remain and advances to
// the first incomplete one, so the flow stays correct even if steps ever
// complete out of declared order.
//
// All step failures (wrong password, refused biometric, bad code, and also
// storage or crypto errors) feed one shared failure counter. Reaching the
// limit (5 by default) locks the flow and offers a destructive reset, which
// must be armed and then confirmed in two separate calls before anything is
// wiped. Wrong-credential and storage-corruption failures are deliberately
// indistinguishable to the caller: both surface as ErrAuthenticationFailed.
//
// Full success mints a short-lived signed session marker, starts the grace
// period (foreground transitions inside it do not re-trigger authentication)
// and the inactivity timer, which on expiry drops the session back to the
// password step and clears transient state.
//
// The orchestrator is an explicit instance with constructor-injected clock,
// storage, and biometric oracle, with no package-level state, so tests can
// run many instances in parallel.
package authflow
