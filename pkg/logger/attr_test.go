package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/vaultcore/pkg/logger"
)

func TestError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))

	attr := logger.Error(errors.New("boom"))
	assert.Equal(t, "error", attr.Key)
}

func TestAttrKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "component", logger.Component("authflow").Key)
	assert.Equal(t, "attempt_id", logger.AttemptID("a1").Key)
	assert.Equal(t, "step", logger.Step("password").Key)
	assert.Equal(t, "failed_attempts", logger.FailedAttempts(3).Key)
	assert.Equal(t, "item_id", logger.ItemID("i1").Key)
	assert.Equal(t, slog.Attr{}, logger.ItemID(nil))
}
