package totp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vaultcore/pkg/totp"
)

func TestProvisioningURI(t *testing.T) {
	t.Parallel()

	engine := totp.New()

	tests := []struct {
		name    string
		params  totp.URIParams
		want    string
		wantErr error
	}{
		{
			name: "defaults from engine config",
			params: totp.URIParams{
				Secret:      "ABCDEFGHIJKLMNOP",
				AccountName: "user@example.com",
				Issuer:      "ColdVault",
			},
			want: "otpauth://totp/ColdVault:user@example.com?algorithm=SHA1&digits=6&issuer=ColdVault&period=30&secret=ABCDEFGHIJKLMNOP",
		},
		{
			name: "special characters are escaped",
			params: totp.URIParams{
				Secret:      "ABCDEFGHIJKLMNOP",
				AccountName: "test+user@example.com",
				Issuer:      "Cold & Vault",
			},
			want: "otpauth://totp/Cold%20&%20Vault:test+user@example.com?algorithm=SHA1&digits=6&issuer=Cold+%26+Vault&period=30&secret=ABCDEFGHIJKLMNOP",
		},
		{
			name: "explicit parameters win",
			params: totp.URIParams{
				Secret:      "ABCDEFGHIJKLMNOP",
				AccountName: "user@example.com",
				Issuer:      "ColdVault",
				Algorithm:   totp.AlgorithmSHA256,
				Digits:      8,
				Period:      60,
			},
			want: "otpauth://totp/ColdVault:user@example.com?algorithm=SHA256&digits=8&issuer=ColdVault&period=60&secret=ABCDEFGHIJKLMNOP",
		},
		{
			name:    "missing secret",
			params:  totp.URIParams{AccountName: "a", Issuer: "b"},
			wantErr: totp.ErrMissingSecret,
		},
		{
			name:    "invalid secret",
			params:  totp.URIParams{Secret: "not base32!", AccountName: "a", Issuer: "b"},
			wantErr: totp.ErrInvalidSecret,
		},
		{
			name:    "missing account name",
			params:  totp.URIParams{Secret: "ABCDEFGHIJKLMNOP", Issuer: "b"},
			wantErr: totp.ErrMissingAccountName,
		},
		{
			name:    "missing issuer",
			params:  totp.URIParams{Secret: "ABCDEFGHIJKLMNOP", AccountName: "a"},
			wantErr: totp.ErrMissingIssuer,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := engine.ProvisioningURI(tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
