package cmd

import (
	"errors"

	"github.com/sanix-darker/mrnotes/internal/common"
	"github.com/sanix-darker/mrnotes/internal/config"
	"github.com/sanix-darker/mrnotes/internal/export"
	"github.com/sanix-darker/mrnotes/internal/renders"
	"github.com/sanix-darker/mrnotes/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var exportFlags = []models.FlagStruct{
	{Label: "from", Description: "result saved with 'run --format json' (- reads stdin)"},
	{Label: "format", Short: "f", Description: "export format: markdown or csv", DefaultValue: formatMarkdown},
	{Label: "output", Short: "o", Description: "write the export to this file instead of stdout"},
}

func newExportCmd(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a saved result as Markdown or CSV",
		Long: `Export the aggregate of a result saved with 'mrnotes run --format json'
without contacting GitLab again.`,
		Example: `  mrnotes export --from result.json -f csv -o gitlab_comments.csv
  mrnotes export --from result.json --clipboard`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, conf)
		},
	}

	flags := cmd.Flags()
	models.RegisterAll(flags, exportFlags)
	_ = cmd.MarkFlagRequired("from")
	flags.Bool("snippets", true, "include code snippets (markdown)")
	flags.Bool("clipboard", false, "copy the export to the clipboard")
	flags.Bool("preview", false, "render markdown output for the terminal")
	flags.Bool("force", false, "overwrite the output file without asking")
	return cmd
}

func runExport(cmd *cobra.Command, conf *config.Config) error {
	flags := cmd.Flags()
	format := common.GetArgByKey("format", flags)
	if err := checkFormat(format, formatMarkdown, formatCSV); err != nil {
		return err
	}

	agg, err := readAggregate(cmd, common.GetArgByKey("from", flags))
	if err != nil {
		return err
	}

	log := newLogger(conf, zapcore.WarnLevel)
	defer func() { _ = log.Sync() }()

	snippets, _ := flags.GetBool("snippets")
	content, err := render(agg, format, export.Options{IncludeGeneral: conf.IncludeGeneral, IncludeSnippets: snippets})
	if err != nil {
		return err
	}
	if format == formatMarkdown {
		for _, e := range export.CheckSnippets(agg) {
			log.Warn("snippet rendered degraded", zap.Error(e))
		}
	}

	if clip, _ := flags.GetBool("clipboard"); clip {
		if common.ClipboardUnsupported {
			return errors.New("no clipboard utility available (install xclip, xsel or wl-clipboard)")
		}
		if err := common.SetClipboardValue(content); err != nil {
			return err
		}
		common.LogInfo(cmd.ErrOrStderr(), "[-] Export copied to the clipboard", nil)
		return nil
	}

	output := common.GetArgByKey("output", flags)
	if preview, _ := flags.GetBool("preview"); preview && format == formatMarkdown && output == "" && isTerminal() {
		content = renders.RenderMarkdown(content)
	}
	force, _ := flags.GetBool("force")
	return writeOutput(cmd, conf, output, content, force)
}
