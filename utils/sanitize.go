package utils

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFilenameLength is the length in bytes accepted by most file systems.
const MaxFilenameLength = 255

var forbiddenChars = regexp.MustCompile(`[\\/:*?\"<>|]+`)

var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename turns filename into a single path element that is valid on
// Linux, macOS and Windows.
func SanitizeFilename(filename string) string {
	filename = forbiddenChars.ReplaceAllString(filename, "_")
	filename = strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, filename)
	filename = strings.TrimSpace(filename)
	filename = strings.Trim(filename, ".")

	// Windows also reserves "CON.txt".
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	if _, ok := reservedNames[strings.ToUpper(stem)]; ok {
		filename = "_" + filename
	}

	if len(filename) > MaxFilenameLength {
		if len(ext) >= MaxFilenameLength {
			ext = ""
		}
		filename = truncate(strings.TrimSuffix(filename, ext), MaxFilenameLength-len(ext)) + ext
	}

	if filename == "" {
		filename = "_"
	}
	return filename
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
