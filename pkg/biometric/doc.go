// Package biometric defines the port to the platform's biometric prompt.
//
// The hardware is an opaque yes/no oracle: the vault never sees biometric
// data, only whether the user passed the prompt. Failures distinguish
// "hardware unavailable" from "user cancelled" so the orchestrator can decide
// whether to retry, fall back, or count a failed attempt.
package biometric
