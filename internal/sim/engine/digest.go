package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// digestHex hashes the canonical state encoding. Two engines that applied
// the same command sequence from the same tuning produce identical digests,
// which is what the replay verifier checks.
func (e *Engine) digestHex() string {
	d := DigestOf(e.exportState())
	if d == "" {
		// Marshal of plain structs cannot fail; treat it as corrupted state.
		e.log.Errorw("state digest marshal failed")
	}
	return d
}

// DigestOf hashes an exported state the same way the live engine does.
func DigestOf(s StateV1) string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
