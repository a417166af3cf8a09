package search

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// WalkDir returns the regular files under dir whose extension is one of
// extensions, in lexical order. Hidden files and directories are skipped.
// Symlinks to regular files are followed; symlinked directories are not.
//
// Only a failure to read dir itself is returned. Entries below it that
// cannot be read are passed to onSkip (if not nil) and left out.
func WalkDir(dir string, extensions []string, onSkip func(path string, err error)) ([]string, error) {
	var files []string

	skip := func(path string, err error) {
		if onSkip != nil {
			onSkip(path, err)
		}
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			skip(path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip the directory itself and the parent directory
		if path == dir || path == "." || path == ".." {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !slices.Contains(extensions, ext) {
			return nil
		}

		switch {
		case d.Type().IsRegular():
			files = append(files, path)
		case d.Type()&fs.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil {
				skip(path, err)
				return nil
			}
			if info.Mode().IsRegular() {
				files = append(files, path)
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return files, nil
}
