package aggregate

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/sanix-darker/mrnotes/internal/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

func diff(id, mr int, path string, line int, created time.Time, body string) vcs.Comment {
	return vcs.Comment{ID: id, MRIID: mr, Author: "dev", Body: body, CreatedAt: created, FilePath: path, Line: line}
}

func general(id, mr int, created time.Time, body string) vcs.Comment {
	return vcs.Comment{ID: id, MRIID: mr, Author: "dev", Body: body, CreatedAt: created}
}

func sampleInput() ([]vcs.MergeRequest, map[int][]vcs.Comment) {
	mrs := []vcs.MergeRequest{{IID: 2, Title: "second"}, {IID: 1, Title: "first"}}
	comments := map[int][]vcs.Comment{
		1: {
			diff(10, 1, "b.go", 3, at(5), "later"),
			diff(11, 1, "b.go", 3, at(1), "earlier"),
			diff(12, 1, "a.go", 10, at(2), "a10"),
			diff(13, 1, "a.go", 2, at(3), "a2"),
			general(14, 1, at(4), "overall fine"),
			{ID: 15, MRIID: 1, Author: "bot", Body: "added 1 commit", CreatedAt: at(0), System: true},
		},
		2: {
			diff(20, 2, "a.go", 2, at(1), "mr2"),
			general(21, 2, at(9), "ship it"),
			general(22, 2, at(8), "one more thing"),
		},
	}
	return mrs, comments
}

func TestBuildGroupsAndOrders(t *testing.T) {
	agg := Build(sampleInput())

	require.Len(t, agg.MergeRequests, 2)
	assert.Equal(t, 1, agg.MergeRequests[0].IID)
	assert.Equal(t, 2, agg.MergeRequests[1].IID)

	var keys []GroupKey
	for _, b := range agg.Lines {
		keys = append(keys, b.Key)
	}
	assert.Equal(t, []GroupKey{
		{MRIID: 1, FilePath: "a.go", Line: 2},
		{MRIID: 1, FilePath: "a.go", Line: 10},
		{MRIID: 1, FilePath: "b.go", Line: 3},
		{MRIID: 2, FilePath: "a.go", Line: 2},
	}, keys)

	b := agg.Lines[2]
	require.Len(t, b.Comments, 2)
	assert.Equal(t, "earlier", b.Comments[0].Body)
	assert.Equal(t, "later", b.Comments[1].Body)

	require.Len(t, agg.General, 2)
	assert.Equal(t, []string{"overall fine"}, bodies(agg.GeneralOf(1)))
	assert.Equal(t, []string{"one more thing", "ship it"}, bodies(agg.GeneralOf(2)))
}

func TestBuildDropsSystemNotes(t *testing.T) {
	agg := Build(sampleInput())
	for _, c := range agg.Comments() {
		assert.False(t, c.System)
		assert.NotEqual(t, 15, c.ID)
	}
}

func TestBuildEveryCommentInExactlyOneBucket(t *testing.T) {
	mrs, comments := sampleInput()
	agg := Build(mrs, comments)

	seen := map[int]int{}
	for _, c := range agg.Comments() {
		seen[c.ID]++
	}
	for _, list := range comments {
		for _, c := range list {
			if c.System {
				continue
			}
			assert.Equal(t, 1, seen[c.ID], "note %d", c.ID)
		}
	}
	assert.Equal(t, 8, agg.Summary().Comments)
}

func TestBuildDeduplicatesNoteIDs(t *testing.T) {
	original := diff(7, 1, "x.go", 1, at(1), "first copy")
	copyOf := original
	copyOf.Body = "second copy"
	late := original
	late.CreatedAt = at(30)
	late.Body = "late copy"

	agg := Build(
		[]vcs.MergeRequest{{IID: 1}},
		map[int][]vcs.Comment{1: {late, copyOf, original}},
	)
	all := agg.Comments()
	require.Len(t, all, 1)
	assert.Equal(t, "first copy", all[0].Body)
}

func TestBuildIsPermutationInvariant(t *testing.T) {
	mrs, comments := sampleInput()
	want := Build(mrs, comments)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffledMRs := append([]vcs.MergeRequest(nil), mrs...)
		rng.Shuffle(len(shuffledMRs), func(a, b int) { shuffledMRs[a], shuffledMRs[b] = shuffledMRs[b], shuffledMRs[a] })
		shuffled := map[int][]vcs.Comment{}
		for iid, list := range comments {
			cp := append([]vcs.Comment(nil), list...)
			rng.Shuffle(len(cp), func(a, b int) { cp[a], cp[b] = cp[b], cp[a] })
			shuffled[iid] = cp
		}
		assert.Equal(t, want, Build(shuffledMRs, shuffled))
	}
}

func TestBuildUsesMapKeyAsMergeRequest(t *testing.T) {
	c := general(1, 99, at(0), "stray")
	agg := Build(nil, map[int][]vcs.Comment{4: {c}})

	require.Len(t, agg.MergeRequests, 1)
	assert.Equal(t, 4, agg.MergeRequests[0].IID)
	assert.Equal(t, 4, agg.GeneralOf(4)[0].MRIID)
}

func TestBuildKeepsMergeRequestsWithoutComments(t *testing.T) {
	agg := Build([]vcs.MergeRequest{{IID: 3}}, nil)
	require.Len(t, agg.MergeRequests, 1)
	assert.Empty(t, agg.Lines)
	assert.Empty(t, agg.General)
	assert.Empty(t, agg.Comments())
}

func TestBucketSnippetIsFirstNonEmpty(t *testing.T) {
	a := diff(1, 1, "a.go", 5, at(1), "one")
	b := diff(2, 1, "a.go", 5, at(2), "two")
	b.Snippet = "line 5"
	c := diff(3, 1, "a.go", 5, at(3), "three")
	c.Snippet = "other"

	agg := Build([]vcs.MergeRequest{{IID: 1}}, map[int][]vcs.Comment{1: {c, b, a}})
	require.Len(t, agg.Lines, 1)
	assert.Equal(t, "line 5", agg.Lines[0].Snippet)
}

func TestCommentsOrder(t *testing.T) {
	agg := Build(sampleInput())
	assert.Equal(t, []int{13, 12, 11, 10, 14, 20, 22, 21}, ids(agg.Comments()))
}

func TestSummary(t *testing.T) {
	s := Build(sampleInput()).Summary()
	assert.Equal(t, Summary{MergeRequests: 2, Comments: 8, CodeComments: 5, GeneralComments: 3, Locations: 4}, s)
}

func TestRebuildFromJSON(t *testing.T) {
	mrs, comments := sampleInput()
	want := Build(mrs, comments)

	data, err := json.Marshal(want)
	require.NoError(t, err)
	var decoded Aggregate
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Reverse bucket order to make sure Rebuild restores it.
	for i, j := 0, len(decoded.Lines)-1; i < j; i, j = i+1, j-1 {
		decoded.Lines[i], decoded.Lines[j] = decoded.Lines[j], decoded.Lines[i]
	}
	got := Rebuild(&decoded)
	assert.Equal(t, ids(want.Comments()), ids(got.Comments()))
	assert.Equal(t, want.Summary(), got.Summary())
}

func TestRebuildCarriesBucketSnippet(t *testing.T) {
	in := &Aggregate{
		MergeRequests: []vcs.MergeRequest{{IID: 1}},
		Lines: []Bucket{{
			Key:      GroupKey{MRIID: 1, FilePath: "a.go", Line: 2},
			Snippet:  "x := 1",
			Comments: []vcs.Comment{{ID: 1, Author: "a", Body: "b", CreatedAt: t0, FilePath: "a.go", Line: 2}},
		}},
	}
	got := Rebuild(in)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "x := 1", got.Lines[0].Snippet)
	assert.Equal(t, 1, got.Lines[0].Comments[0].MRIID)
}

func TestGroupKeyLess(t *testing.T) {
	assert.True(t, GroupKey{MRIID: 1, FilePath: "z", Line: 9}.Less(GroupKey{MRIID: 2}))
	assert.True(t, GroupKey{MRIID: 1, FilePath: "a", Line: 9}.Less(GroupKey{MRIID: 1, FilePath: "b", Line: 1}))
	assert.True(t, GroupKey{MRIID: 1, FilePath: "a", Line: 2}.Less(GroupKey{MRIID: 1, FilePath: "a", Line: 10}))
	assert.False(t, GroupKey{MRIID: 1, FilePath: "a", Line: 2}.Less(GroupKey{MRIID: 1, FilePath: "a", Line: 2}))
	assert.Equal(t, "a.go:2", GroupKey{MRIID: 1, FilePath: "a.go", Line: 2}.String())
}

func bodies(comments []vcs.Comment) []string {
	var out []string
	for _, c := range comments {
		out = append(out, c.Body)
	}
	return out
}

func ids(comments []vcs.Comment) []int {
	var out []int
	for _, c := range comments {
		out = append(out, c.ID)
	}
	return out
}
