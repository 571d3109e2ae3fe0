package stamp

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"sort"
)

// HashPath fingerprints one trigger path. Files hash their content; directories
// hash their sorted entry names, so creating or deleting a loose ref changes
// the fingerprint of its directory. Metadata such as mtime is ignored.
func HashPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		sort.Strings(names)
		writeField(h, []byte("dir"))
		for _, n := range names {
			writeField(h, []byte(n))
		}
	} else {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		writeField(h, []byte("file"))
		writeField(h, content)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes fingerprints generated output.
func HashBytes(b []byte) string {
	h := sha256.New()
	writeField(h, []byte("file"))
	writeField(h, b)
	return hex.EncodeToString(h.Sum(nil))
}

// writeField writes data with an 8-byte big-endian length prefix so that
// adjacent fields cannot run into each other.
func writeField(h hash.Hash, data []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(data)))
	h.Write(n[:])
	h.Write(data)
}
