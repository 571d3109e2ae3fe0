package stamp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fusion-engineering/git-version/internal/gen"
)

// ErrNoStamp is returned by Load when the stamp file does not exist.
var ErrNoStamp = errors.New("no stamp")

// Save writes m to path in canonical form, leaving an identical file untouched.
func Save(path string, m *Manifest) error {
	data, err := m.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("encoding stamp: %w", err)
	}
	if _, err := gen.WriteIfChanged(path, data, 0o644); err != nil {
		return fmt.Errorf("writing stamp %s: %w", path, err)
	}
	return nil
}

// Load reads and validates the stamp at path. Unknown fields are rejected.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoStamp, path)
		}
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing stamp %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("parsing stamp %s: trailing data", path)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stamp %s: %w", path, err)
	}
	m.Canonicalize()
	return &m, nil
}
