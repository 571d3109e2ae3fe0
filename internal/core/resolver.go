package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// TriggerPaths computes the rebuild-trigger set for a version generated from
// root and the given submodules (paths relative to root).
//
// For every repository it covers HEAD, index and logs/HEAD of the metadata
// directory, packed-refs and every directory and loose ref under refs/ of the
// common directory, and the .gitmodules file of the working tree. Pointer
// files are resolved first, so submodule triggers name the resolved metadata
// location rather than the `.git` file.
//
// Only existing paths are returned: a missing path cannot change until it is
// created, and creating it updates a listed directory or HEAD. Paths are
// canonical (symlinks evaluated), sorted and unique.
func TriggerPaths(root string, submodules []string) ([]string, error) {
	set := make(map[string]struct{})

	if err := addRepoTriggers(set, root); err != nil {
		return nil, err
	}
	for _, rel := range submodules {
		dir := filepath.Join(root, filepath.FromSlash(rel))
		if err := addRepoTriggers(set, dir); err != nil {
			return nil, fmt.Errorf("submodule %s: %w", rel, err)
		}
	}

	// Explicit sort; map iteration order must not leak into the result.
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func addRepoTriggers(set map[string]struct{}, root string) error {
	gitDir, commonDir, err := ResolveGitDir(root)
	if err != nil {
		return err
	}

	candidates := []string{
		filepath.Join(gitDir, "HEAD"),
		filepath.Join(gitDir, "index"),
		filepath.Join(gitDir, "logs", "HEAD"),
		filepath.Join(commonDir, "packed-refs"),
		filepath.Join(root, ".gitmodules"),
	}
	for _, c := range candidates {
		if err := addExisting(set, c); err != nil {
			return err
		}
	}

	refs := filepath.Join(commonDir, "refs")
	err = filepath.WalkDir(refs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		return addExisting(set, path)
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", refs, err)
	}
	return nil
}

// addExisting canonicalizes path and adds it to set if it exists.
func addExisting(set map[string]struct{}, path string) error {
	canonical, err := CanonicalPath(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	set[canonical] = struct{}{}
	return nil
}

// CanonicalPath returns the absolute, symlink-free form of an existing path.
// Trigger paths from every registrar use this form so they compare equal.
func CanonicalPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}
