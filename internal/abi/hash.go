package abi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainABI prefixes ABI fingerprints. The version suffix allows future
// algorithm migration.
const DomainABI = "genfut/abi/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a content-addressed identity of m's ABI.
// The backend name is excluded, so equivalent models share a fingerprint.
func Fingerprint(m *Model) (string, error) {
	canonical, err := MarshalCanonical(canonicalABI(m))
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainABI, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when the model is known to be valid.
func MustFingerprint(m *Model) string {
	fp, err := Fingerprint(m)
	if err != nil {
		panic(err)
	}
	return fp
}
