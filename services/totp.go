package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/pquerna/otp/totp"
)

const totpIssuer = "TaskQuest"

// TwoFactorSetup is what a client needs to enrol an authenticator app.
type TwoFactorSetup struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
	URL    string `json:"url"`
}

// GenerateTwoFactor creates a new TOTP secret and its QR code as a PNG data
// URL.
func GenerateTwoFactor(accountName string) (TwoFactorSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return TwoFactorSetup{}, fmt.Errorf("failed to generate 2FA secret: %w", err)
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return TwoFactorSetup{}, fmt.Errorf("failed to generate QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return TwoFactorSetup{}, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return TwoFactorSetup{
		Secret: key.Secret(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		URL:    key.URL(),
	}, nil
}

func ValidateTwoFactor(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}
