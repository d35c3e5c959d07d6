package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sanix-darker/mrnotes/internal/analysis"
	"github.com/sanix-darker/mrnotes/internal/common"
	"github.com/sanix-darker/mrnotes/internal/config"
	"github.com/sanix-darker/mrnotes/internal/export"
	"github.com/sanix-darker/mrnotes/internal/gitremote"
	"github.com/sanix-darker/mrnotes/internal/renders"
	"github.com/sanix-darker/mrnotes/internal/selection"
	"github.com/sanix-darker/mrnotes/internal/vcs"
	"github.com/sanix-darker/mrnotes/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// isTerminal is swapped in tests.
var isTerminal = renders.IsTerminal

var runFlags = []models.FlagStruct{
	{Label: "mr-ids", Short: "m", Description: "comma separated merge request IIDs, e.g. 12,15 (default: every labeled one)"},
	{Label: "format", Short: "f", Description: "output format: summary, markdown, csv or json", DefaultValue: formatSummary},
	{Label: "output", Short: "o", Description: "write the output to this file instead of stdout"},
	{Label: "repo", Description: "local clone whose remote gives the GitLab URL and project"},
	{Label: "remote", Description: "remote read with --repo", DefaultValue: gitremote.DefaultRemote},
}

func newRunCmd(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch and group the comments of labeled merge requests",
		Long: `Fetch the discussions of the merge requests carrying the label (all of
them, or the ones given with --mr-ids), group the comments by merge request and
code line, then print a summary or an export.`,
		Example: `  mrnotes run -p group/project --label NashTech
  mrnotes run --repo . -m 12,15 -f markdown -o review.md
  mrnotes run -p 42 -f json -o result.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, conf)
		},
	}

	flags := cmd.Flags()
	models.RegisterAll(flags, runFlags)
	flags.StringP("label", "l", conf.Label, "label selecting the merge requests")
	flags.Bool("snippets", conf.IncludeSnippets, "attach the code around each commented line")
	flags.Int("snippet-context", conf.SnippetContext, "lines shown on each side of the commented line")
	flags.Bool("preview", false, "render markdown output for the terminal")
	flags.Bool("force", false, "overwrite the output file without asking")

	bindFlags(conf, flags, map[string]string{
		config.KeyLabel:          "label",
		config.KeySnippets:       "snippets",
		config.KeySnippetContext: "snippet-context",
	})
	return cmd
}

func runAnalysis(cmd *cobra.Command, conf *config.Config) error {
	flags := cmd.Flags()
	format := common.GetArgByKey("format", flags)
	if err := checkFormat(format, formatSummary, formatMarkdown, formatCSV, formatJSON); err != nil {
		return err
	}

	ids, err := selection.ParseIDs(common.GetArgByKey("mr-ids", flags))
	if err != nil {
		return err
	}
	conf.MRIIDs = ids

	log := newLogger(conf, zapcore.WarnLevel)
	defer func() { _ = log.Sync() }()

	if err := detectProject(cmd, conf, log); err != nil {
		return err
	}
	if conf.Token == "" && isInteractive(conf) {
		token, err := conf.Printers.PromptSecret("GitLab private token")
		if err != nil {
			return err
		}
		conf.Token = token
	}

	if err := conf.Analysis().Validate(); err != nil {
		return err
	}
	client, err := newGitLabClient(conf.ClientOptions(log))
	if err != nil {
		return err
	}

	progress, stop := newProgress(cmd.ErrOrStderr(), log)
	res, err := analysis.Run(cmd.Context(), conf.Analysis(), client,
		analysis.WithWorkers(conf.Workers),
		analysis.WithLogger(log),
		analysis.WithProgress(progress),
	)
	stop()
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		common.LogError(cmd.ErrOrStderr(), "[!] "+w.Message)
	}

	opts := export.Options{IncludeGeneral: conf.IncludeGeneral, IncludeSnippets: conf.IncludeSnippets}
	output := common.GetArgByKey("output", flags)
	force, _ := flags.GetBool("force")

	var content string
	switch format {
	case formatSummary:
		content = summary(res)
	case formatJSON:
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		content = string(data) + "\n"
	default:
		if content, err = render(res.Aggregate, format, opts); err != nil {
			return err
		}
		if format == formatMarkdown {
			for _, e := range export.CheckSnippets(res.Aggregate) {
				log.Warn("snippet rendered degraded", zap.Error(e))
			}
			if preview, _ := flags.GetBool("preview"); preview && output == "" && isTerminal() {
				content = renders.RenderMarkdown(content)
			}
		}
	}
	return writeOutput(cmd, conf, output, content, force)
}

// detectProject fills the project, and the instance URL when left at its
// default, from the remote of --repo.
func detectProject(cmd *cobra.Command, conf *config.Config, log *zap.Logger) error {
	repo := common.GetArgByKey("repo", cmd.Flags())
	if repo == "" {
		return nil
	}
	remote, err := gitremote.Detect(repo, common.GetArgByKey("remote", cmd.Flags()))
	if err != nil {
		return err
	}
	log.Debug("detected project", zap.String("url", remote.URL), zap.String("project", remote.ProjectPath()))

	if conf.ProjectID == "" {
		conf.ProjectID = remote.ProjectPath()
	}
	if conf.GitLabURL == config.DefaultGitLabURL {
		conf.GitLabURL = remote.BaseURL
	}
	return nil
}

// newProgress shows a spinner on a terminal and debug logs otherwise.
func newProgress(w io.Writer, log *zap.Logger) (analysis.ProgressCallback, func()) {
	if !isTerminal() {
		return func(done, total int, mr vcs.MergeRequest) {
			log.Debug("progress", zap.Int("done", done), zap.Int("total", total), zap.Int("mr_iid", mr.IID))
		}, func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " fetching merge requests..."
	s.Start()
	return func(done, total int, mr vcs.MergeRequest) {
		s.Lock()
		s.Suffix = fmt.Sprintf(" fetched %d/%d (MR !%d)", done, total, mr.IID)
		s.Unlock()
	}, s.Stop
}

func summary(res *analysis.Result) string {
	agg := res.Aggregate
	sum := agg.Summary()

	out := fmt.Sprintf("Processed %d merge request(s): %d comment(s), %d on %d code location(s), %d general.\n",
		sum.MergeRequests, sum.Comments, sum.CodeComments, sum.Locations, sum.GeneralComments)
	for _, mr := range agg.MergeRequests {
		code := 0
		for _, b := range agg.LinesOf(mr.IID) {
			code += len(b.Comments)
		}
		out += fmt.Sprintf("  !%d %s: %d code, %d general\n", mr.IID, mr.Title, code, len(agg.GeneralOf(mr.IID)))
	}
	return out
}
