package recovery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vaultcore/pkg/recovery"
	"github.com/dmitrymomot/vaultcore/pkg/secrets"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("default count", func(t *testing.T) {
		t.Parallel()
		codes, err := recovery.Generate(0)
		require.NoError(t, err)
		assert.Len(t, codes, recovery.DefaultCount)
		for _, code := range codes {
			assert.Len(t, code, recovery.CodeLength)
			assert.Regexp(t, "^[A-Z0-9]+$", code)
		}
	})

	t.Run("custom count", func(t *testing.T) {
		t.Parallel()
		codes, err := recovery.Generate(3)
		require.NoError(t, err)
		assert.Len(t, codes, 3)
	})

	t.Run("codes are independently random", func(t *testing.T) {
		t.Parallel()
		codes, err := recovery.Generate(recovery.DefaultCount)
		require.NoError(t, err)
		seen := make(map[string]bool, len(codes))
		for _, code := range codes {
			assert.False(t, seen[code], "duplicate code %s", code)
			seen[code] = true
		}
	})

	t.Run("rejects negative count", func(t *testing.T) {
		t.Parallel()
		_, err := recovery.Generate(-1)
		assert.ErrorIs(t, err, recovery.ErrInvalidCount)
	})
}

func TestBatchRoundTrip(t *testing.T) {
	t.Parallel()

	codes, err := recovery.Generate(0)
	require.NoError(t, err)

	env, err := recovery.EncryptBatch(codes, "master-password")
	require.NoError(t, err)

	batch, err := recovery.Stored{Batch: &env}.Load("master-password")
	require.NoError(t, err)
	assert.Equal(t, codes, batch.Codes())
	assert.Equal(t, len(codes), batch.Len())
}

func TestConsume(t *testing.T) {
	t.Parallel()

	codes, err := recovery.Generate(0)
	require.NoError(t, err)
	batch := recovery.NewBatch(codes)

	t.Run("valid code is removed once", func(t *testing.T) {
		t.Parallel()
		res, err := recovery.Consume(codes[2], batch, "pw")
		require.NoError(t, err)
		assert.True(t, res.Found)
		assert.Equal(t, len(codes)-1, res.Remaining)

		// Reload the updated blob: the consumed code no longer validates.
		reduced, err := recovery.Stored{Batch: &res.Updated}.Load("pw")
		require.NoError(t, err)
		assert.NotContains(t, reduced.Codes(), codes[2])

		second, err := recovery.Consume(codes[2], reduced, "pw")
		require.NoError(t, err)
		assert.False(t, second.Found)
		assert.Equal(t, len(codes)-1, second.Remaining)
	})

	t.Run("unknown code leaves batch unchanged", func(t *testing.T) {
		t.Parallel()
		res, err := recovery.Consume("NOTACODE", batch, "pw")
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.Equal(t, len(codes), res.Remaining)
		assert.Empty(t, res.Updated.Ciphertext, "no updated blob without a match")
	})

	t.Run("candidate is normalized", func(t *testing.T) {
		t.Parallel()
		lower := "  " + codes[0] + " "
		res, err := recovery.Consume(lower, batch, "pw")
		require.NoError(t, err)
		assert.True(t, res.Found)
	})
}

func TestLoadLegacyFormat(t *testing.T) {
	t.Parallel()

	codes := []string{"AAAA1111", "BBBB2222", "CCCC3333"}
	legacy := make([]secrets.Envelope, 0, len(codes))
	for _, code := range codes {
		env, err := secrets.EncryptString(code, "pw")
		require.NoError(t, err)
		legacy = append(legacy, env)
	}

	batch, err := recovery.Stored{Legacy: legacy}.Load("pw")
	require.NoError(t, err)
	assert.Equal(t, codes, batch.Codes())

	// Consuming from a legacy load re-encrypts as a batch blob.
	res, err := recovery.Consume("BBBB2222", batch, "pw")
	require.NoError(t, err)
	assert.True(t, res.Found)

	reduced, err := recovery.Stored{Batch: &res.Updated}.Load("pw")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA1111", "CCCC3333"}, reduced.Codes())
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty storage", func(t *testing.T) {
		t.Parallel()
		_, err := recovery.Stored{}.Load("pw")
		assert.ErrorIs(t, err, recovery.ErrNoStoredCodes)
	})

	t.Run("ambiguous storage", func(t *testing.T) {
		t.Parallel()
		env, err := secrets.EncryptString("x", "pw")
		require.NoError(t, err)
		_, err = recovery.Stored{Batch: &env, Legacy: []secrets.Envelope{env}}.Load("pw")
		assert.ErrorIs(t, err, recovery.ErrAmbiguousStorage)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		env, err := recovery.EncryptBatch([]string{"AAAA1111"}, "pw")
		require.NoError(t, err)
		_, err = recovery.Stored{Batch: &env}.Load("wrong")
		assert.ErrorIs(t, err, secrets.ErrDecryptionFailed)
	})

	t.Run("batch that is not a list", func(t *testing.T) {
		t.Parallel()
		env, err := secrets.EncryptString("not json", "pw")
		require.NoError(t, err)
		_, err = recovery.Stored{Batch: &env}.Load("pw")
		assert.ErrorIs(t, err, recovery.ErrMalformedBatch)
	})
}
