package stamp

import "fmt"

// Recorder is a rebuild-trigger registrar that fingerprints each path as it
// is registered.
type Recorder struct {
	triggers map[string]string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{triggers: make(map[string]string)}
}

// Register fingerprints path.
func (r *Recorder) Register(path string) error {
	if r.triggers == nil {
		r.triggers = make(map[string]string)
	}
	h, err := HashPath(path)
	if err != nil {
		return fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	r.triggers[path] = h
	return nil
}

// Manifest builds a canonical manifest from the recorded triggers.
func (r *Recorder) Manifest(dir, output string, outputData []byte, submodules bool) *Manifest {
	m := &Manifest{
		Format:     FormatVersion,
		Dir:        dir,
		Output:     output,
		OutputHash: HashBytes(outputData),
		Submodules: submodules,
	}
	for p, h := range r.triggers {
		m.Triggers = append(m.Triggers, Trigger{Path: p, Hash: h})
	}
	m.Canonicalize()
	return m
}
