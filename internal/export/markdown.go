// Package export renders an aggregate as Markdown or CSV.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sanix-darker/mrnotes/internal/aggregate"
	"github.com/sanix-darker/mrnotes/internal/vcs"
)

const (
	// MarkdownFilename and CSVFilename are the suggested download names.
	MarkdownFilename = "gitlab_comments.md"
	CSVFilename      = "gitlab_comments.csv"
)

// Options selects the optional parts of an export.
type Options struct {
	IncludeGeneral  bool
	IncludeSnippets bool
}

// DefaultOptions includes general comments and snippets.
func DefaultOptions() Options {
	return Options{IncludeGeneral: true, IncludeSnippets: true}
}

// Timestamp formats t the way both exports do: RFC 3339 in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Markdown renders agg as a Markdown document. Merge requests follow IID order
// and locations follow bucket order. Snippets that need escaping are rendered
// degraded; use CheckSnippets to list them.
func Markdown(agg *aggregate.Aggregate, opts Options) string {
	var sb strings.Builder

	sb.WriteString("# GitLab MR Comments Export\n\n")
	if agg == nil {
		return sb.String()
	}

	for _, mr := range agg.MergeRequests {
		title := mr.Title
		if title == "" {
			title = "(untitled)"
		}
		sb.WriteString(fmt.Sprintf("## MR !%d: %s\n\n", mr.IID, title))
		if mr.WebURL != "" {
			sb.WriteString(fmt.Sprintf("<%s>\n\n", mr.WebURL))
		}

		lines := agg.LinesOf(mr.IID)
		general := agg.GeneralOf(mr.IID)
		if len(lines) == 0 && (!opts.IncludeGeneral || len(general) == 0) {
			sb.WriteString("_No comments._\n\n")
			continue
		}

		for _, b := range lines {
			sb.WriteString(fmt.Sprintf("### %s\n\n", b.Key))
			if opts.IncludeSnippets && b.Snippet != "" {
				block, _ := FenceCodeBlock(b.Snippet, Language(b.Key.FilePath))
				sb.WriteString(block)
				sb.WriteString("\n")
			}
			writeComments(&sb, b.Comments)
		}

		if opts.IncludeGeneral && len(general) > 0 {
			sb.WriteString("### General Comments\n\n")
			writeComments(&sb, general)
		}
	}

	return sb.String()
}

func writeComments(sb *strings.Builder, comments []vcs.Comment) {
	for _, c := range comments {
		sb.WriteString(fmt.Sprintf("**%s** (%s): %s\n\n", c.Author, Timestamp(c.CreatedAt), strings.TrimSpace(c.Body)))
	}
	sb.WriteString("---\n\n")
}

// CheckSnippets returns a *FormatError for every bucket snippet that Markdown
// has to escape.
func CheckSnippets(agg *aggregate.Aggregate) []error {
	if agg == nil {
		return nil
	}
	var errs []error
	for _, b := range agg.Lines {
		if b.Snippet == "" {
			continue
		}
		_, err := FenceCodeBlock(b.Snippet, "")
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Location = fmt.Sprintf("MR !%d %s", b.Key.MRIID, b.Key)
			errs = append(errs, fe)
		}
	}
	return errs
}
