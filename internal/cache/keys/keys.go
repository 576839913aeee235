// Package keys derives response cache keys. A key binds the canonical request
// to the incumbent snapshot version and the engine configuration, so a new
// snapshot or config never serves an old answer.
package keys

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const prefix = "afc:inq"

// Inquiry is the key for a canonical request body.
func Inquiry(snapshotVersion, configFP uint64, canonical []byte) string {
	return fmt.Sprintf("%s:v%d:c%016x:r%016x", prefix, snapshotVersion, configFP, xxhash.Sum64(canonical))
}

// Fingerprint hashes the JSON encoding of v.
func Fingerprint(v any) (uint64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("fingerprint: %w", err)
	}
	return xxhash.Sum64(b), nil
}
