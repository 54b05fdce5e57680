package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrPathTraversal     = errors.New("path traversal detected")
	ErrAbsolutePath      = errors.New("absolute paths are not allowed")
	ErrReservedName      = errors.New("reserved filename not allowed")
	ErrLeadingHyphen     = errors.New("filename cannot start with hyphen")
	ErrUnsupportedFormat = errors.New("unsupported export extension")

	exportExtensions = []string{".md", ".markdown", ".json", ".txt"}

	windowsReservedNames = map[string]bool{
		"con": true, "prn": true, "aux": true, "nul": true,
		"com1": true, "com2": true, "com3": true, "com4": true,
		"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
		"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
		"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
	}
)

// ValidateExportPath accepts relative paths inside the working directory that
// end in a report extension.
func ValidateExportPath(path string) error {
	if filepath.IsAbs(path) {
		return ErrAbsolutePath
	}

	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") || strings.Contains(path, "..") {
		return ErrPathTraversal
	}

	base := filepath.Base(cleaned)
	ext := strings.ToLower(filepath.Ext(base))
	if windowsReservedNames[strings.TrimSuffix(strings.ToLower(base), ext)] {
		return ErrReservedName
	}
	if strings.HasPrefix(base, "-") {
		return ErrLeadingHyphen
	}
	if !slices.Contains(exportExtensions, ext) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedFormat, ext, strings.Join(exportExtensions, ", "))
	}
	return nil
}

// SanitizeFilename turns free text, such as a prompt, into a safe file stem.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", " ", "-",
		"*", "", "?", "", "\"", "", "'", "",
		"<", "", ">", "", "|", "", "\x00", "", "\n", "-", "\t", "-",
	)
	sanitized := strings.ToLower(replacer.Replace(strings.TrimSpace(name)))
	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}
	if len(sanitized) > 48 {
		sanitized = sanitized[:48]
	}
	sanitized = strings.Trim(sanitized, ".- ")

	if windowsReservedNames[sanitized] {
		sanitized += "_"
	}
	if sanitized == "" {
		sanitized = "workshop"
	}
	return sanitized
}
