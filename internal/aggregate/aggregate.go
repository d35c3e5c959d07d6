// Package aggregate groups merge request comments by merge request and code line.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/sanix-darker/mrnotes/internal/vcs"
)

// GroupKey identifies a commented code location.
type GroupKey struct {
	MRIID    int    `json:"mr_iid"`
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
}

// Less orders keys by merge request, then file path, then line.
func (k GroupKey) Less(o GroupKey) bool {
	if k.MRIID != o.MRIID {
		return k.MRIID < o.MRIID
	}
	if k.FilePath != o.FilePath {
		return k.FilePath < o.FilePath
	}
	return k.Line < o.Line
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s:%d", k.FilePath, k.Line)
}

// Bucket holds the comments of one location in chronological order. General
// buckets use a key with an empty path and line 0.
type Bucket struct {
	Key      GroupKey      `json:"key"`
	Snippet  string        `json:"snippet,omitempty"`
	Comments []vcs.Comment `json:"comments"`
}

// Aggregate is the grouped view of a run.
type Aggregate struct {
	// MergeRequests are the processed merge requests, ordered by IID.
	MergeRequests []vcs.MergeRequest `json:"merge_requests"`

	// Lines are the code-location buckets, ordered by key.
	Lines []Bucket `json:"lines"`

	// General holds one bucket per merge request with comments not tied to a line.
	General []Bucket `json:"general"`
}

// Summary counts what an aggregate holds.
type Summary struct {
	MergeRequests   int `json:"merge_requests"`
	Comments        int `json:"comments"`
	CodeComments    int `json:"code_comments"`
	GeneralComments int `json:"general_comments"`
	Locations       int `json:"locations"`
}

// Build aggregates the comments of mrs. commentsByMR is keyed by merge request
// IID; the key overrides the MRIID carried by each comment. System notes are
// dropped and repeated note ids are kept once. The result does not depend on
// the order of mrs or of the comment slices.
func Build(mrs []vcs.MergeRequest, commentsByMR map[int][]vcs.Comment) *Aggregate {
	agg := &Aggregate{
		MergeRequests: make([]vcs.MergeRequest, 0, len(mrs)),
		Lines:         []Bucket{},
		General:       []Bucket{},
	}

	known := make(map[int]bool, len(mrs))
	sortedMRs := append([]vcs.MergeRequest(nil), mrs...)
	sort.SliceStable(sortedMRs, func(i, j int) bool { return lessMR(sortedMRs[i], sortedMRs[j]) })
	for _, mr := range sortedMRs {
		if known[mr.IID] {
			continue
		}
		known[mr.IID] = true
		agg.MergeRequests = append(agg.MergeRequests, mr)
	}

	var all []vcs.Comment
	for iid, comments := range commentsByMR {
		for _, c := range comments {
			if c.System {
				continue
			}
			c.MRIID = iid
			all = append(all, c)
		}
	}
	all = dedupe(all)

	lines := make(map[GroupKey]*Bucket)
	general := make(map[int]*Bucket)
	for _, c := range all {
		if !known[c.MRIID] {
			known[c.MRIID] = true
			agg.MergeRequests = append(agg.MergeRequests, vcs.MergeRequest{IID: c.MRIID})
		}
		if c.IsDiff() {
			key := GroupKey{MRIID: c.MRIID, FilePath: c.FilePath, Line: c.Line}
			b, ok := lines[key]
			if !ok {
				b = &Bucket{Key: key}
				lines[key] = b
			}
			b.Comments = append(b.Comments, c)
			continue
		}
		b, ok := general[c.MRIID]
		if !ok {
			b = &Bucket{Key: GroupKey{MRIID: c.MRIID}}
			general[c.MRIID] = b
		}
		b.Comments = append(b.Comments, c)
	}
	sort.Slice(agg.MergeRequests, func(i, j int) bool { return agg.MergeRequests[i].IID < agg.MergeRequests[j].IID })

	for _, b := range lines {
		finalize(b)
		agg.Lines = append(agg.Lines, *b)
	}
	sort.Slice(agg.Lines, func(i, j int) bool { return agg.Lines[i].Key.Less(agg.Lines[j].Key) })

	for _, b := range general {
		finalize(b)
		agg.General = append(agg.General, *b)
	}
	sort.Slice(agg.General, func(i, j int) bool { return agg.General[i].Key.MRIID < agg.General[j].Key.MRIID })

	return agg
}

// Rebuild derives a canonical aggregate from one that was decoded or edited.
// Bucket snippets are carried over to comments that lack one.
func Rebuild(a *Aggregate) *Aggregate {
	if a == nil {
		return Build(nil, nil)
	}
	byMR := make(map[int][]vcs.Comment)
	collect := func(buckets []Bucket) {
		for _, b := range buckets {
			for _, c := range b.Comments {
				if c.MRIID == 0 {
					c.MRIID = b.Key.MRIID
				}
				if c.Snippet == "" {
					c.Snippet = b.Snippet
				}
				byMR[c.MRIID] = append(byMR[c.MRIID], c)
			}
		}
	}
	collect(a.Lines)
	collect(a.General)
	return Build(a.MergeRequests, byMR)
}

// LinesOf returns the line buckets of merge request iid.
func (a *Aggregate) LinesOf(iid int) []Bucket {
	start := sort.Search(len(a.Lines), func(i int) bool { return a.Lines[i].Key.MRIID >= iid })
	end := start
	for end < len(a.Lines) && a.Lines[end].Key.MRIID == iid {
		end++
	}
	return a.Lines[start:end]
}

// GeneralOf returns the general comments of merge request iid.
func (a *Aggregate) GeneralOf(iid int) []vcs.Comment {
	i := sort.Search(len(a.General), func(i int) bool { return a.General[i].Key.MRIID >= iid })
	if i < len(a.General) && a.General[i].Key.MRIID == iid {
		return a.General[i].Comments
	}
	return nil
}

// Comments returns every comment, merge request by merge request: line
// comments in bucket order, then general comments.
func (a *Aggregate) Comments() []vcs.Comment {
	var out []vcs.Comment
	for _, mr := range a.MergeRequests {
		for _, b := range a.LinesOf(mr.IID) {
			out = append(out, b.Comments...)
		}
		out = append(out, a.GeneralOf(mr.IID)...)
	}
	return out
}

// Summary returns the counts shown after a run.
func (a *Aggregate) Summary() Summary {
	s := Summary{MergeRequests: len(a.MergeRequests), Locations: len(a.Lines)}
	for _, b := range a.Lines {
		s.CodeComments += len(b.Comments)
	}
	for _, b := range a.General {
		s.GeneralComments += len(b.Comments)
	}
	s.Comments = s.CodeComments + s.GeneralComments
	return s
}

func finalize(b *Bucket) {
	sort.Slice(b.Comments, func(i, j int) bool {
		ci, cj := b.Comments[i], b.Comments[j]
		if !ci.CreatedAt.Equal(cj.CreatedAt) {
			return ci.CreatedAt.Before(cj.CreatedAt)
		}
		return ci.ID < cj.ID
	})
	for _, c := range b.Comments {
		if c.Snippet != "" {
			b.Snippet = c.Snippet
			break
		}
	}
}

// dedupe keeps, for every note id, the comment that sorts first in total order.
func dedupe(comments []vcs.Comment) []vcs.Comment {
	sort.Slice(comments, func(i, j int) bool { return lessComment(comments[i], comments[j]) })
	seen := make(map[int]bool, len(comments))
	out := comments[:0]
	for _, c := range comments {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func lessComment(a, b vcs.Comment) bool {
	switch {
	case !a.CreatedAt.Equal(b.CreatedAt):
		return a.CreatedAt.Before(b.CreatedAt)
	case a.ID != b.ID:
		return a.ID < b.ID
	case a.MRIID != b.MRIID:
		return a.MRIID < b.MRIID
	case a.Author != b.Author:
		return a.Author < b.Author
	case a.Body != b.Body:
		return a.Body < b.Body
	case a.FilePath != b.FilePath:
		return a.FilePath < b.FilePath
	case a.Line != b.Line:
		return a.Line < b.Line
	case a.Snippet != b.Snippet:
		return a.Snippet < b.Snippet
	case a.DiscussionID != b.DiscussionID:
		return a.DiscussionID < b.DiscussionID
	default:
		return a.CommitSHA < b.CommitSHA
	}
}

// lessMR makes the choice among merge requests repeated in the input deterministic.
func lessMR(a, b vcs.MergeRequest) bool {
	switch {
	case a.IID != b.IID:
		return a.IID < b.IID
	case a.ID != b.ID:
		return a.ID < b.ID
	case a.Title != b.Title:
		return a.Title < b.Title
	case a.WebURL != b.WebURL:
		return a.WebURL < b.WebURL
	default:
		return a.SHA < b.SHA
	}
}
