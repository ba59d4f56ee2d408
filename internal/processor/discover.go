package processor

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Supported input extensions (lowercase, with leading dot).
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}

const heicExtension = ".heic"

// Extensions returns the allow-list, adding .heic when the codec can read it.
func Extensions(heic bool) map[string]bool {
	exts := make(map[string]bool, len(imageExtensions)+1)
	for _, ext := range imageExtensions {
		exts[ext] = true
	}
	if heic {
		exts[heicExtension] = true
	}
	return exts
}

// Discovery lists the candidates under a root.
type Discovery struct {
	Paths []string
	// Omitted counts entries below the root that could not be read.
	Omitted int
}

// ValidateRoot resolves root to an absolute path with symlinks evaluated and
// checks that it is an existing directory. WalkDir does not descend through a
// symlinked root, so callers walk the returned path.
func ValidateRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", &DiscoveryError{Root: root, Err: err}
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return "", &DiscoveryError{Root: absRoot, Err: err}
	}
	if !info.IsDir() {
		return "", &DiscoveryError{Root: absRoot, Err: errNotDirectory}
	}
	return absRoot, nil
}

// Discover walks root recursively and returns the absolute paths of regular
// files whose extension is in exts (case-insensitive), sorted. Symlinks are
// kept when they resolve to a regular file. Unreadable entries below the root
// are left out and counted; only an unreadable root is an error.
func Discover(root string, exts map[string]bool) (Discovery, error) {
	var found Discovery

	absRoot, err := ValidateRoot(root)
	if err != nil {
		return found, err
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			found.Omitted++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		mode := d.Type()
		if mode&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				// Dangling link.
				return nil
			}
			mode = target.Mode().Type()
		}
		if !mode.IsRegular() {
			return nil
		}

		found.Paths = append(found.Paths, path)
		return nil
	})
	if err != nil {
		return Discovery{}, &DiscoveryError{Root: absRoot, Err: err}
	}

	sort.Strings(found.Paths)
	return found, nil
}
