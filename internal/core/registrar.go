package core

import (
	"errors"
	"sort"
)

// Registrar is the host build pipeline's "rebuild if this path changes"
// facility. The Expander calls Register once per trigger path.
type Registrar interface {
	Register(path string) error
}

// RegistrarFunc adapts a function to Registrar.
type RegistrarFunc func(path string) error

func (f RegistrarFunc) Register(path string) error { return f(path) }

// PathSet collects registered paths in memory.
type PathSet struct {
	seen map[string]struct{}
}

// Register adds path to the set.
func (s *PathSet) Register(path string) error {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	s.seen[path] = struct{}{}
	return nil
}

// Paths returns the registered paths, sorted.
func (s *PathSet) Paths() []string {
	out := make([]string, 0, len(s.seen))
	for p := range s.seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type multiRegistrar []Registrar

func (m multiRegistrar) Register(path string) error {
	var errs []error
	for _, r := range m {
		if err := r.Register(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiRegistrar fans each registration out to every non-nil registrar.
func MultiRegistrar(rs ...Registrar) Registrar {
	m := make(multiRegistrar, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}
