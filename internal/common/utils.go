/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>
*/
package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
)

// LogError: to print an error message on w
func LogError(w io.Writer, message string) {
	fmt.Fprintf(w, "%s\n", message)
}

// LogInfo: for a simple logging info
func LogInfo(
	w io.Writer,
	message string,
	callback func(),
) {
	fmt.Fprintf(w, "%s\n", message)

	// for a given callback
	if callback != nil {
		callback()
	}
}

// GetArgByKey get a string flag value, or "" when the flag is not defined
func GetArgByKey(key string, cmdFlags *pflag.FlagSet) string {
	value, err := cmdFlags.GetString(key)
	if err != nil {
		return ""
	}
	return value
}

// WriteOutputFile writes content to path ("~" is expanded) and returns the
// final path. Existing files are only replaced when overwrite is set.
func WriteOutputFile(path string, content []byte, overwrite bool) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	if !overwrite {
		if _, err := os.Stat(expanded); err == nil {
			return "", fmt.Errorf("%s already exists", expanded)
		}
	}
	if dir := filepath.Dir(expanded); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(expanded, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", expanded, err)
	}
	return expanded, nil
}

// FileExists reports whether path ("~" is expanded) exists.
func FileExists(path string) bool {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(expanded)
	return err == nil
}
