package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// TOTPManager enrolls and validates admin TOTP secrets. Secrets are stored
// sealed with AES-256-GCM as base64(nonce || ciphertext).
type TOTPManager struct {
	encryptionKey []byte // 32-byte AES-256 key
	issuer        string
}

// Enrollment is returned once, at setup time.
type Enrollment struct {
	Secret        string `json:"secret"`
	URL           string `json:"otpauthUrl"`
	QRCodeDataURL string `json:"qrCode"`
	Sealed        string `json:"-"`
}

// NewTOTPManager creates a new TOTP manager
// encryptionKey must be exactly 32 bytes for AES-256
func NewTOTPManager(encryptionKey []byte, issuer string) (*TOTPManager, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(encryptionKey))
	}

	return &TOTPManager{
		encryptionKey: encryptionKey,
		issuer:        issuer,
	}, nil
}

// NewTOTPManagerFromHex decodes a 64-character hex key.
func NewTOTPManagerFromHex(hexKey, issuer string) (*TOTPManager, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be hex encoded: %w", err)
	}
	return NewTOTPManager(key, issuer)
}

// Enroll generates a fresh secret for accountName with its provisioning QR code.
func (tm *TOTPManager) Enroll(accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountName,
		SecretSize:  20,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	qr, err := qrcode.New(key.URL(), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(200)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	sealed, err := tm.Seal(key.Secret())
	if err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret:        key.Secret(),
		URL:           key.URL(),
		QRCodeDataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Sealed:        sealed,
	}, nil
}

// Seal encrypts a base32 secret for storage.
func (tm *TOTPManager) Seal(secret string) (string, error) {
	gcm, err := tm.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (tm *TOTPManager) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed secret: %w", err)
	}

	gcm, err := tm.gcm()
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("failed to decrypt secret: sealed value too short")
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plaintext), nil
}

func (tm *TOTPManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Validate checks code against a sealed secret, allowing one 30s step of clock drift.
func (tm *TOTPManager) Validate(sealed, code string, now time.Time) (bool, error) {
	secret, err := tm.Open(sealed)
	if err != nil {
		return false, err
	}

	valid, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		// Malformed codes are a failed attempt, not a server error.
		return false, nil
	}
	return valid, nil
}
