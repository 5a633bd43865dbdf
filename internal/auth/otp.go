package auth

import (
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// OTPGenerator produces one-time email codes. Every issuance gets its own
// random HOTP secret; the code is the secret's first counter value, so the
// secret is all that needs to be stored to check the code later.
type OTPGenerator struct {
	issuer string
	opts   hotp.ValidateOpts
}

func NewOTPGenerator(issuer string) *OTPGenerator {
	return &OTPGenerator{
		issuer: issuer,
		opts: hotp.ValidateOpts{
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
}

// Generate returns a new code and the secret it was derived from.
func (g *OTPGenerator) Generate(accountName string) (code, secret string, err error) {
	key, err := hotp.Generate(hotp.GenerateOpts{
		Issuer:      g.issuer,
		AccountName: accountName,
		SecretSize:  20,
		Digits:      g.opts.Digits,
		Algorithm:   g.opts.Algorithm,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate otp secret: %w", err)
	}

	code, err = hotp.GenerateCodeCustom(key.Secret(), 0, g.opts)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return code, key.Secret(), nil
}

// Validate reports whether code was generated from secret.
func (g *OTPGenerator) Validate(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	ok, err := hotp.ValidateCustom(code, 0, secret, g.opts)
	return err == nil && ok
}
