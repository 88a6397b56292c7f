package registry

import (
	_ "crypto/sha256"

	"github.com/opencontainers/go-digest"
)

// ChecksumAlgorithm is the digest algorithm used for archive checksums.
const ChecksumAlgorithm = digest.SHA256

// Checksum returns the lowercase hex SHA-256 of the archive bytes.
func Checksum(archive []byte) string {
	return ChecksumAlgorithm.FromBytes(archive).Encoded()
}

