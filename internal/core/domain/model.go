package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var modelNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateModelName rejects names that would escape the base path or that the
// model server refuses as a model_name flag.
func ValidateModelName(name string) error {
	if name == "" || strings.Contains(name, "..") || !modelNamePattern.MatchString(name) {
		return ErrInvalidModelName
	}
	return nil
}

// ParseVersion parses a version directory name. The serving layout only
// recognises positive integers.
func ParseVersion(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidVersion
	}
	return v, nil
}

func FormatVersion(v int64) string {
	return strconv.FormatInt(v, 10)
}

// ModelVersion is one numbered directory under {base}/{model}.
type ModelVersion struct {
	ModelName string `json:"model_name"`
	Version   int64  `json:"version"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}
