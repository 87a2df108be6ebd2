// internal/ledger/wallet/keyprovider.go
package wallet

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// KeyProvider provisions an address for a new wallet. The ledger is
// independent of address format and validity; production deployments
// plug in the platform's key-generation service.
type KeyProvider interface {
	NewAddress(ctx context.Context, ownerType, ownerID string) (string, error)
}

// DevKeyProvider derives addresses from cryptographically random
// material. Suitable for development and testing only.
type DevKeyProvider struct{}

func (DevKeyProvider) NewAddress(_ context.Context, ownerType, ownerID string) (string, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(ownerType))
	h.Write([]byte(ownerID))
	h.Write(seed[:])
	sum := h.Sum(nil)

	return "0x" + hex.EncodeToString(sum[:20]), nil
}
