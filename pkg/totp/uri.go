package totp

import (
	"fmt"
	"net/url"
)

// URIParams describe a provisioning URI for authenticator apps.
type URIParams struct {
	Secret      string // Base32 secret (required)
	AccountName string // user identifier shown in the app (required)
	Issuer      string // service name shown in the app (required)
	Algorithm   Algorithm
	Digits      int
	Period      int
}

func (p URIParams) validate() error {
	if p.Secret == "" {
		return ErrMissingSecret
	}
	if !validSecretRegex.MatchString(p.Secret) {
		return ErrInvalidSecret
	}
	if p.AccountName == "" {
		return ErrMissingAccountName
	}
	if p.Issuer == "" {
		return ErrMissingIssuer
	}
	return nil
}

// ProvisioningURI builds an otpauth:// URI following the Key Uri Format:
// https://github.com/google/google-authenticator/wiki/Key-Uri-Format
// Unset algorithm/digits/period fall back to the engine's configuration.
func (e *Engine) ProvisioningURI(params URIParams) (string, error) {
	if err := params.validate(); err != nil {
		return "", err
	}

	if params.Algorithm == "" {
		params.Algorithm = e.cfg.Algorithm
	}
	if params.Digits == 0 {
		params.Digits = e.cfg.Digits
	}
	if params.Period == 0 {
		params.Period = e.cfg.Period
	}

	label := fmt.Sprintf("%s:%s",
		url.PathEscape(params.Issuer),
		url.PathEscape(params.AccountName),
	)

	query := url.Values{}
	query.Set("secret", params.Secret)
	query.Set("issuer", params.Issuer)
	query.Set("algorithm", string(params.Algorithm))
	query.Set("digits", fmt.Sprintf("%d", params.Digits))
	query.Set("period", fmt.Sprintf("%d", params.Period))

	return fmt.Sprintf("otpauth://totp/%s?%s", label, query.Encode()), nil
}
