package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot, lower-cased
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsJPEGFile checks if a file has a .jpg or .jpeg extension, case-insensitively
func IsJPEGFile(filename string) bool {
	switch GetFileExtension(filename) {
	case "jpg", "jpeg":
		return true
	}
	return false
}

// SplitName splits a filename into its base name and extension (with dot)
func SplitName(filename string) (string, string) {
	name := filepath.Base(filename)
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// CropFilename returns "<base>_<index><ext>"; ext keeps its leading dot
func CropFilename(base string, index int, ext string) string {
	return fmt.Sprintf("%s_%d%s", base, index, ext)
}

// ListJPEGFiles returns the JPEG file names directly inside dir, sorted by
// name, along with the names of the regular files that were not JPEGs.
func ListJPEGFiles(dir string) ([]string, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var jpegs, others []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsJPEGFile(e.Name()) {
			jpegs = append(jpegs, e.Name())
		} else {
			others = append(others, e.Name())
		}
	}

	sort.Strings(jpegs)
	sort.Strings(others)
	return jpegs, others, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}
