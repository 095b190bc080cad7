package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint computes the stable content hash of an analysis configuration.
//
// The configuration is canonicalized by JSON encoding: encoding/json writes
// map keys in sorted order, so reordering entries of mapping-typed parts
// (per-column conditions) does not change the hash. Slice order (column
// selection, condition lists) is preserved and does change it, because list
// order fixes combination enumeration order.
//
// Two semantically identical configurations always fingerprint identically;
// this is the correctness-critical invariant behind the cache.
func Fingerprint(config any) (string, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize config: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
