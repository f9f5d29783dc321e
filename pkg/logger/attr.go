package logger

import "log/slog"

// Error records a single error under the key "error". Nil yields an empty
// attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the emitting component under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// AttemptID records the authentication attempt identifier.
func AttemptID(id string) slog.Attr {
	return slog.String("attempt_id", id)
}

// Step records the current authentication step.
func Step(step string) slog.Attr {
	return slog.String("step", step)
}

// ItemID records a vault item identifier.
func ItemID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("item_id", id)
}

// FailedAttempts records the shared failure counter value.
func FailedAttempts(count int) slog.Attr {
	return slog.Int("failed_attempts", count)
}
