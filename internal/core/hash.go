package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainStep is the domain prefix for journaled step identity.
// The version suffix allows the algorithm to change without colliding with old IDs.
const DomainStep = "framebridge/step/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StepID computes the content-addressed ID of a journaled step.
// payload must already be canonical JSON; the ID is stable across replays
// given the same session, seq, call and payload.
func StepID(sessionID string, seq int64, call string, payload []byte) (string, error) {
	obj := map[string]any{
		"session_id": sessionID,
		"seq":        seq,
		"call":       call,
		"payload":    string(payload),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("StepID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStep, canonical), nil
}

// MustStepID is like StepID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStepID(sessionID string, seq int64, call string, payload []byte) string {
	id, err := StepID(sessionID, seq, call, payload)
	if err != nil {
		panic(err)
	}
	return id
}
