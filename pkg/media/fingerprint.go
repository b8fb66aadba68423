package media

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Fingerprint is the stable content hash of a directory's immediate child and
// sidecar names. Two scans of an unchanged directory produce identical values
// regardless of enumeration order; the zero value is the "no stamp" sentinel
// used for anything that isn't a file-system directory.
type Fingerprint [sha256.Size]byte

// IsZero reports whether the fingerprint is the "no stamp" sentinel.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// FingerprintFromString parses the hex form produced by String. An empty or
// malformed input yields the zero fingerprint.
func FingerprintFromString(s string) Fingerprint {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(f) {
		return Fingerprint{}
	}
	copy(f[:], b)
	return f
}

// Stamp hashes the child names followed by the metadata-file names, each set
// sorted ascending first. Only names participate: renames are detected,
// in-place content edits are not. Empty input is well-defined and hashes to
// the digest of the empty string.
func Stamp(childNames, metadataFileNames []string) Fingerprint {
	children := make([]string, len(childNames))
	copy(children, childNames)
	sort.Strings(children)

	metadata := make([]string, len(metadataFileNames))
	copy(metadata, metadataFileNames)
	sort.Strings(metadata)

	// Each name is NUL-terminated so adjacent names can't collide, and the
	// metadata set is tagged so a name moving between sets changes the stamp.
	h := sha256.New()
	for _, name := range children {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	for _, name := range metadata {
		h.Write([]byte{1})
		h.Write([]byte(name))
		h.Write([]byte{0})
	}

	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f
}
