// Package verify authenticates interaction callbacks with the application's
// Ed25519 public key.
package verify

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Verifier checks detached signatures over timestamp ++ body.
type Verifier struct {
	key ed25519.PublicKey
}

// New parses a hex-encoded Ed25519 public key.
func New(publicKeyHex string) (*Verifier, error) {
	publicKeyHex = strings.TrimSpace(publicKeyHex)
	if publicKeyHex == "" {
		return nil, errors.New("verify: public key must not be empty")
	}
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("verify: decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verify: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return &Verifier{key: ed25519.PublicKey(raw)}, nil
}

// Verify reports whether signatureHex is a valid signature of timestamp
// followed by body. body must be the bytes exactly as received.
func (v *Verifier) Verify(signatureHex, timestamp string, body []byte) bool {
	if v == nil || len(v.key) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(v.key, msg, sig)
}
