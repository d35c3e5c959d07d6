package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout of config.yml.
type File struct {
	GitLabURL      string    `yaml:"gitlab_url"`
	ProjectID      string    `yaml:"project_id"`
	Token          string    `yaml:"token,omitempty"`
	Label          string    `yaml:"label"`
	PerPage        int       `yaml:"per_page"`
	Workers        int       `yaml:"workers"`
	Timeout        string    `yaml:"timeout"`
	Retry          RetryFile `yaml:"retry"`
	Snippets       bool      `yaml:"snippets"`
	SnippetContext int       `yaml:"snippet_context"`
	General        bool      `yaml:"general"`
}

// RetryFile is the retry section of config.yml.
type RetryFile struct {
	MaxRetries      int    `yaml:"max_retries"`
	InitialInterval string `yaml:"initial_interval"`
	MaxInterval     string `yaml:"max_interval"`
}

// ToFile converts the effective settings to the file layout. The token is
// replaced by a mask unless withToken is set.
func (conf Config) ToFile(withToken bool) File {
	token := conf.Token
	if !withToken {
		token = Mask(token)
	}
	return File{
		GitLabURL:      conf.GitLabURL,
		ProjectID:      conf.ProjectID,
		Token:          token,
		Label:          conf.Label,
		PerPage:        conf.PerPage,
		Workers:        conf.Workers,
		Timeout:        conf.Timeout.String(),
		Retry: RetryFile{
			MaxRetries:      conf.Retry.MaxRetries,
			InitialInterval: conf.Retry.InitialInterval.String(),
			MaxInterval:     conf.Retry.MaxInterval.String(),
		},
		Snippets:       conf.IncludeSnippets,
		SnippetContext: conf.SnippetContext,
		General:        conf.IncludeGeneral,
	}
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

// Marshal renders f as YAML.
func (f File) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

// WriteFile writes f to path, creating the parent directory. The file may
// hold a token, so it is only readable by the owner.
func WriteFile(path string, f File) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
