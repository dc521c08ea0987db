// Package idempotency records upload request identifiers so a retried upload
// replays its first result instead of appending documents twice.
//
// A key moves through two states: reserved (in progress) and completed. A
// reservation expires after a short TTL so a crashed request cannot block the
// key forever; a completion is kept for the replay window.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// ProvisionalTTL bounds how long an in-progress reservation blocks retries.
const ProvisionalTTL = 60 * time.Second

// Record is the state stored under one key.
type Record struct {
	InProgress  bool   `json:"in_progress"`
	Fingerprint string `json:"fingerprint"`
	Payload     []byte `json:"payload,omitempty"`
}

// Store reserves, completes and releases idempotency keys.
type Store interface {
	// Reserve claims key. When the key already exists it returns the stored
	// record and reserved=false.
	Reserve(ctx context.Context, key, fingerprint string) (rec Record, reserved bool, err error)
	// Complete stores the final payload for the replay window.
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Release drops a reservation after a failed attempt so a retry may run.
	Release(ctx context.Context, key string) error
}

// Key scopes a client request id to one case.
func Key(caseID, requestID string) string {
	return "kyc:idem:upload:" + caseID + ":" + requestID
}

// Fingerprint summarizes an upload so a key reused with different files is
// detected. Parts are hashed in order.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FileFingerprint is the fingerprint part for one uploaded file.
func FileFingerprint(name string, size int64) string {
	return strings.TrimSpace(name) + "/" + strconv.FormatInt(size, 10)
}
