package object

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/pjbgf/sha1cd"
)

// Envelope returns the full encoded record "kind len\0payload" that is
// hashed and stored.
func Envelope(kind Kind, payload []byte) []byte {
	header := kind.String() + " " + strconv.Itoa(len(payload)) + "\x00"
	raw := make([]byte, 0, len(header)+len(payload))
	raw = append(raw, header...)
	raw = append(raw, payload...)
	return raw
}

// HashRecord computes the digest of an already-enveloped record. It fails
// with ErrCorruptObject if the SHA-1 collision detector fires.
func HashRecord(raw []byte) (Hash, error) {
	sum, collision := sha1cd.Sum(raw)
	if collision {
		return "", fmt.Errorf("%w: sha1 collision attack detected", ErrCorruptObject)
	}
	return Hash(hex.EncodeToString(sum[:])), nil
}

// HashObject computes the digest of the envelope "kind len\0payload",
// mirroring Git's loose object hashing.
func HashObject(kind Kind, payload []byte) (Hash, error) {
	return HashRecord(Envelope(kind, payload))
}

// ParseHash validates a full 40-character hex digest.
func ParseHash(s string) (Hash, error) {
	if len(s) != HashHexLen || !isHex(s) {
		return "", fmt.Errorf("invalid object hash %q", s)
	}
	return Hash(s), nil
}

// IsHash reports whether s is a well-formed full digest.
func IsHash(s string) bool {
	return len(s) == HashHexLen && isHex(s)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// HashOnly computes digests without persisting anything. It is used to
// compare a working tree against a commit without touching the store.
type HashOnly struct{}

// Write returns the digest the record would be stored under.
func (HashOnly) Write(kind Kind, payload []byte) (Hash, error) {
	return HashObject(kind, payload)
}
