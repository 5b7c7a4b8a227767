package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UniqueFilename replaces the extension of filename by ext and returns the
// first name that does not exist yet: "a.ext", "a.1.ext", "a.2.ext"...
//
// The parent directories are created.
func UniqueFilename(filename, ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	var name string
	for n := 0; ; n++ {
		if n == 0 {
			name = fmt.Sprintf("%s.%s", base, ext)
		} else {
			name = fmt.Sprintf("%s.%d.%s", base, n, ext)
		}
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			break
		}
	}

	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return "", err
	}
	return name, nil
}
