package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// GenerateUUID returns a new random identifier
func GenerateUUID() string {
	return uuid.New().String()
}

// HashParams produces a stable hash of a parameters map. Keys are sorted so
// two maps with the same entries always hash identically; the hash is stored
// on the report document and used by the coalescing query.
func HashParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var keyData string
	for _, k := range keys {
		// json.Marshal gives a stable rendering for nested values
		v, err := json.Marshal(params[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%v", params[k]))
		}
		keyData += k + "=" + string(v) + ";"
	}

	hash := sha256.Sum256([]byte(keyData))
	return hex.EncodeToString(hash[:])
}

// HashKey hashes an arbitrary string into a fixed-length cache key segment
func HashKey(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
