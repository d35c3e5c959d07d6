package export

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/sanix-darker/mrnotes/internal/aggregate"
	"github.com/sanix-darker/mrnotes/internal/vcs"
)

// CSVHeader is the fixed column order of CSV exports.
var CSVHeader = []string{"mr_iid", "file_path", "line_number", "author", "created_at", "body"}

// CSV renders agg with one row per comment, merge request by merge request:
// line comments in bucket order, then general comments when enabled. General
// comments have empty file_path and line_number.
func CSV(agg *aggregate.Aggregate, opts Options) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(CSVHeader); err != nil {
		return "", fmt.Errorf("export: writing csv header: %w", err)
	}
	if agg != nil {
		for _, mr := range agg.MergeRequests {
			for _, b := range agg.LinesOf(mr.IID) {
				for _, c := range b.Comments {
					if err := w.Write(csvRow(c)); err != nil {
						return "", fmt.Errorf("export: writing csv row for note %d: %w", c.ID, err)
					}
				}
			}
			if !opts.IncludeGeneral {
				continue
			}
			for _, c := range agg.GeneralOf(mr.IID) {
				if err := w.Write(csvRow(c)); err != nil {
					return "", fmt.Errorf("export: writing csv row for note %d: %w", c.ID, err)
				}
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export: flushing csv: %w", err)
	}
	return sb.String(), nil
}

func csvRow(c vcs.Comment) []string {
	line := ""
	if c.IsDiff() {
		line = strconv.Itoa(c.Line)
	}
	return []string{
		strconv.Itoa(c.MRIID),
		c.FilePath,
		line,
		c.Author,
		Timestamp(c.CreatedAt),
		c.Body,
	}
}
