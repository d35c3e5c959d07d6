package vcs

import (
	"context"
	"time"
)

// Client abstracts the merge request and discussion endpoints the analysis needs.
type Client interface {
	// ListMergeRequests returns every merge request carrying label, across all pages.
	ListMergeRequests(ctx context.Context, label string) ([]MergeRequest, error)

	// ListNotes returns every discussion note of the merge request, across all pages.
	ListNotes(ctx context.Context, mr MergeRequest) ([]Comment, error)

	// RawFile returns the content of path at ref.
	RawFile(ctx context.Context, ref, path string) ([]byte, error)
}

// MergeRequest holds the merge request metadata used for grouping and export.
type MergeRequest struct {
	ID     int      `json:"id"`
	IID    int      `json:"iid"`
	Title  string   `json:"title"`
	WebURL string   `json:"web_url"`
	SHA    string   `json:"sha,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// Comment is a single discussion note of a merge request.
// FilePath is empty and Line is 0 for notes that are not anchored to a diff line.
type Comment struct {
	ID           int       `json:"id"`
	DiscussionID string    `json:"discussion_id,omitempty"`
	MRIID        int       `json:"mr_iid"`
	Author       string    `json:"author"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
	FilePath     string    `json:"file_path,omitempty"`
	Line         int       `json:"line,omitempty"`
	Snippet      string    `json:"snippet,omitempty"`
	CommitSHA    string    `json:"commit_sha,omitempty"`
	System       bool      `json:"system,omitempty"`
}

// IsDiff reports whether the comment is anchored to a file line.
func (c Comment) IsDiff() bool {
	return c.FilePath != "" && c.Line > 0
}
