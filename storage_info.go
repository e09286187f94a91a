package docsync

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// StorageInfo is the result of probing a source.
type StorageInfo struct {
	// Metadata collected from the source (header prefixes stripped).
	Metadata map[string]string `json:"metadata"`

	// Remote reports that the source answers queries itself.
	Remote bool `json:"remote"`

	Size   int64 `json:"size"`
	Status int   `json:"status"`
}

// Canonical returns the canonical serialization of the info.
// Field order is fixed and metadata keys are sorted, so two values with the
// same content always serialize to the same bytes.
func (i *StorageInfo) Canonical() ([]byte, error) {
	v := *i
	if v.Metadata == nil {
		v.Metadata = map[string]string{}
	}
	return json.Marshal(&v)
}

// Equal reports whether both infos have byte-identical canonical serializations.
func (i *StorageInfo) Equal(other *StorageInfo) bool {
	if i == nil || other == nil {
		return i == other
	}
	a, err := i.Canonical()
	if err != nil {
		return false
	}
	b, err := other.Canonical()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Fingerprint returns the xxHash of the canonical serialization as hex.
func (i *StorageInfo) Fingerprint() string {
	if i == nil {
		return ""
	}
	b, err := i.Canonical()
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// MetadataValue looks up a metadata key ignoring case. Header-derived
// metadata arrives lower-cased while well-known keys are camelCase.
func MetadataValue(metadata map[string]string, key string) (string, bool) {
	if v, ok := metadata[key]; ok {
		return v, true
	}
	for k, v := range metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
