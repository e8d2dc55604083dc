package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTable is the digest domain for table views. The version suffix
// changes whenever the view shape changes.
const DomainTable = "cylcview/table/v1"

// Digest returns the hex SHA-256 of domain, a zero byte, then data.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestValue canonically encodes v and digests it under domain.
func DigestValue(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return Digest(domain, data), nil
}
