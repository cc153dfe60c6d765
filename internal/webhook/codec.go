// Package webhook implements the opaque-token codec the webhook_trigger
// endpoint depends on: the server hands out ciphertext at webhook_create and
// later accepts it back, decrypts it, and synthesizes the registered action
// as the original creator. Token issuance policy (who may mint one) belongs
// to the external identity subsystem; only the encrypt/decrypt boundary
// lives here.
package webhook

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Codec is an AES-256-GCM implementation of models.WebhookCodec. Tokens are
// base64url(nonce || ciphertext); the key never leaves process memory.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a Codec from a base64-encoded 32-byte key.
func NewCodec(base64Key string) (*Codec, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("webhook: key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("webhook: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("webhook: build cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("webhook: build GCM: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals webhookID into an opaque token.
func (c *Codec) Encrypt(webhookID string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("webhook: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(webhookID), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token back into the webhook id it authorizes. Any
// tampering or truncation fails authentication and yields an error, never a
// wrong id.
func (c *Codec) Decrypt(token string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("webhook: token is not valid base64url: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(sealed) < ns {
		return "", fmt.Errorf("webhook: token too short")
	}
	plain, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("webhook: token failed authentication")
	}
	return string(plain), nil
}
