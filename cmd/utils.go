/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>
*/
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sanix-darker/mrnotes/internal/aggregate"
	"github.com/sanix-darker/mrnotes/internal/common"
	"github.com/sanix-darker/mrnotes/internal/config"
	"github.com/sanix-darker/mrnotes/internal/export"
	"github.com/sanix-darker/mrnotes/internal/vcs"
	"github.com/sanix-darker/mrnotes/internal/vcs/gitlab"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// output formats of run and export
const (
	formatSummary  = "summary"
	formatMarkdown = "markdown"
	formatCSV      = "csv"
	formatJSON     = "json"
)

// bindFlags binds each viper key to the flag of the same setting.
func bindFlags(conf *config.Config, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := conf.Viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// newLogger returns the diagnostics logger writing on stderr from level, or
// from debug with --debug.
func newLogger(conf *config.Config, level zapcore.Level) *zap.Logger {
	if conf.Debug {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(conf.ErrWriter), level))
}

func newGitLabClient(opts gitlab.Options) (vcs.Client, error) {
	c, err := gitlab.New(opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// render formats agg for format, which must be markdown or csv.
func render(agg *aggregate.Aggregate, format string, opts export.Options) (string, error) {
	switch format {
	case formatMarkdown:
		return export.Markdown(agg, opts), nil
	case formatCSV:
		return export.CSV(agg, opts)
	default:
		return "", fmt.Errorf("unknown format %q, was expecting markdown or csv", format)
	}
}

// writeOutput prints content, or writes it to path when path is set. An
// existing file is replaced with --force or after confirmation on a terminal.
func writeOutput(cmd *cobra.Command, conf *config.Config, path, content string, force bool) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(cmd.OutOrStdout(), content)
		return err
	}

	if common.FileExists(path) && !force {
		if !isInteractive(conf) || !conf.Printers.Confirm(fmt.Sprintf("%s already exists, overwrite it?", path)) {
			return fmt.Errorf("%s already exists, use --force to overwrite it", path)
		}
	}
	written, err := common.WriteOutputFile(path, []byte(content), true)
	if err != nil {
		return err
	}
	common.LogInfo(cmd.ErrOrStderr(), fmt.Sprintf("[-] Written to %s", written), nil)
	return nil
}

// readAggregate loads an aggregate saved with `run --format json`. A bare
// aggregate document is accepted too. "-" reads from the command input.
func readAggregate(cmd *cobra.Command, path string) (*aggregate.Aggregate, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		var expanded string
		if expanded, err = homedir.Expand(path); err == nil {
			data, err = os.ReadFile(expanded)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc struct {
		Aggregate *aggregate.Aggregate `json:"aggregate"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if doc.Aggregate == nil {
		var bare aggregate.Aggregate
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&bare); err != nil {
			return nil, fmt.Errorf("%s holds no aggregate: %w", path, err)
		}
		doc.Aggregate = &bare
	}
	return aggregate.Rebuild(doc.Aggregate), nil
}

// isInteractive reports whether prompts can be shown.
func isInteractive(conf *config.Config) bool {
	f, ok := conf.InReader.(*os.File)
	return ok && f == os.Stdin && isTerminal()
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q, was expecting one of %s", format, strings.Join(allowed, ", "))
}
