package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/sanix-darker/mrnotes/internal/analysis"
	printers "github.com/sanix-darker/mrnotes/internal/printers"
	"github.com/sanix-darker/mrnotes/internal/vcs"
	"github.com/sanix-darker/mrnotes/internal/vcs/gitlab"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	EnvPrefix      = "MRNOTES"
	ConfigDirPath  = ".config/mrnotes"
	ConfigFileName = "config.yml"
	DotEnvFile     = ".env"

	DefaultGitLabURL = "https://gitlab.com"
)

// Keys of the settings, shared by the config file, MRNOTES_* variables and flags.
const (
	KeyGitLabURL       = "gitlab_url"
	KeyProjectID       = "project_id"
	KeyToken           = "token"
	KeyLabel           = "label"
	KeyPerPage         = "per_page"
	KeyWorkers         = "workers"
	KeyTimeout         = "timeout"
	KeyMaxRetries      = "retry.max_retries"
	KeyInitialInterval = "retry.initial_interval"
	KeyMaxInterval     = "retry.max_interval"
	KeySnippets        = "snippets"
	KeySnippetContext  = "snippet_context"
	KeyGeneral         = "general"
	KeyDebug           = "debug"
)

// Config contains the entire cli dependencies
type Config struct {
	Version string
	Viper   *viper.Viper

	// ConfigFile overrides ~/.config/mrnotes/config.yml when set.
	ConfigFile string

	Debug           bool
	GitLabURL       string
	ProjectID       string
	Token           string
	Label           string
	MRIIDs          []int
	PerPage         int
	Workers         int
	Timeout         time.Duration
	Retry           vcs.RetryConfig
	IncludeSnippets bool
	SnippetContext  int
	IncludeGeneral  bool

	Printers printers.IPrinters

	//io Writers useful for testing
	InReader  io.Reader
	OutWriter io.Writer
	ErrWriter io.Writer
}

// NewDefaultConfig creates a new default config
func NewDefaultConfig() Config {
	conf := Config{
		Printers:        printers.NewPrinters(),
		GitLabURL:       DefaultGitLabURL,
		Label:           analysis.DefaultLabel,
		PerPage:         50,
		Workers:         4,
		Timeout:         30 * time.Second,
		Retry:           vcs.DefaultRetryConfig(),
		IncludeSnippets: true,
		SnippetContext:  1,
		IncludeGeneral:  true,
		InReader:        os.Stdin,
		OutWriter:       os.Stdout,
		ErrWriter:       os.Stderr,
	}
	conf.Viper = newViper(conf)
	return conf
}

func newViper(conf Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyGitLabURL, conf.GitLabURL)
	v.SetDefault(KeyProjectID, "")
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyLabel, conf.Label)
	v.SetDefault(KeyPerPage, conf.PerPage)
	v.SetDefault(KeyWorkers, conf.Workers)
	v.SetDefault(KeyTimeout, conf.Timeout)
	v.SetDefault(KeyMaxRetries, conf.Retry.MaxRetries)
	v.SetDefault(KeyInitialInterval, conf.Retry.InitialInterval)
	v.SetDefault(KeyMaxInterval, conf.Retry.MaxInterval)
	v.SetDefault(KeySnippets, conf.IncludeSnippets)
	v.SetDefault(KeySnippetContext, conf.SnippetContext)
	v.SetDefault(KeyGeneral, conf.IncludeGeneral)
	v.SetDefault(KeyDebug, false)
	return v
}

// Load reads .env, the config file and MRNOTES_* variables into conf.
// Flags bound to conf.Viper take precedence over all of them. A missing
// .env or config file is not an error.
func (conf *Config) Load() error {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	path := conf.ConfigFile
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = GetConfigFilePath(); err != nil {
			return err
		}
	} else {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("failed to expand %s: %w", path, err)
		}
		path = expanded
	}

	conf.Viper.SetConfigFile(path)
	if err := conf.Viper.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v := conf.Viper
	conf.Debug = v.GetBool(KeyDebug)
	conf.GitLabURL = strings.TrimRight(v.GetString(KeyGitLabURL), "/")
	conf.ProjectID = v.GetString(KeyProjectID)
	conf.Token = v.GetString(KeyToken)
	conf.Label = v.GetString(KeyLabel)
	conf.PerPage = v.GetInt(KeyPerPage)
	conf.Workers = v.GetInt(KeyWorkers)
	conf.Timeout = v.GetDuration(KeyTimeout)
	conf.Retry.MaxRetries = v.GetInt(KeyMaxRetries)
	conf.Retry.InitialInterval = v.GetDuration(KeyInitialInterval)
	conf.Retry.MaxInterval = v.GetDuration(KeyMaxInterval)
	conf.IncludeSnippets = v.GetBool(KeySnippets)
	conf.SnippetContext = v.GetInt(KeySnippetContext)
	conf.IncludeGeneral = v.GetBool(KeyGeneral)
	return nil
}

// Analysis returns the run configuration.
func (conf Config) Analysis() analysis.Config {
	return analysis.Config{
		BaseURL:         conf.GitLabURL,
		ProjectID:       conf.ProjectID,
		Token:           conf.Token,
		MRIIDs:          conf.MRIIDs,
		Label:           conf.Label,
		IncludeSnippets: conf.IncludeSnippets,
		SnippetContext:  conf.SnippetContext,
	}
}

// ClientOptions returns the GitLab client settings.
func (conf Config) ClientOptions(log *zap.Logger) gitlab.Options {
	return gitlab.Options{
		BaseURL:   conf.GitLabURL,
		ProjectID: conf.ProjectID,
		Token:     conf.Token,
		PerPage:   conf.PerPage,
		Timeout:   conf.Timeout,
		Retry:     conf.Retry,
		Logger:    log,
	}
}

// GetConfigDirPath returns the path of the mrnotes folder
func GetConfigDirPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to read home directory: %w", err)
	}
	return filepath.Join(home, ConfigDirPath), nil
}

// GetConfigFilePath get the config file path
func GetConfigFilePath() (string, error) {
	dir, err := GetConfigDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}
