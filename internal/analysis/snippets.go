package analysis

import (
	"context"
	"strings"
	"sync"

	"github.com/sanix-darker/mrnotes/internal/vcs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type fileRef struct {
	ref  string
	path string
}

// attachSnippets fills Comment.Snippet for diff comments with the lines around
// the commented line. Each file revision is downloaded once; a file that cannot
// be fetched leaves its snippets empty.
func (r *runner) attachSnippets(ctx context.Context, client vcs.Client, around int, selected []vcs.MergeRequest, comments [][]vcs.Comment) error {
	wanted := make(map[fileRef]bool)
	for i, mr := range selected {
		for _, c := range comments[i] {
			if c.System || !c.IsDiff() {
				continue
			}
			if ref := snippetRef(c, mr); ref != "" {
				wanted[fileRef{ref: ref, path: c.FilePath}] = true
			}
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	files := make(map[fileRef][]string, len(wanted))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for key := range wanted {
		key := key
		g.Go(func() error {
			data, err := client.RawFile(gctx, key.ref, key.path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.log.Debug("snippet unavailable", zap.String("path", key.path), zap.String("ref", key.ref), zap.Error(err))
				return nil
			}
			mu.Lock()
			files[key] = splitLines(string(data))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	for i, mr := range selected {
		for j := range comments[i] {
			c := &comments[i][j]
			if c.System || !c.IsDiff() {
				continue
			}
			lines := files[fileRef{ref: snippetRef(*c, mr), path: c.FilePath}]
			c.Snippet = Snippet(lines, c.Line, around)
		}
	}
	return nil
}

func snippetRef(c vcs.Comment, mr vcs.MergeRequest) string {
	if c.CommitSHA != "" {
		return c.CommitSHA
	}
	return mr.SHA
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// Snippet returns line (1-based) of lines with up to around lines on each
// side, or "" when line is out of range.
func Snippet(lines []string, line, around int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	if around < 0 {
		around = 0
	}
	start := line - 1 - around
	if start < 0 {
		start = 0
	}
	end := line + around
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}
