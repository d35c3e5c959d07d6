package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/sanix-darker/mrnotes/internal/aggregate"
	"github.com/sanix-darker/mrnotes/internal/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func sample() ([]vcs.MergeRequest, map[int][]vcs.Comment) {
	mrs := []vcs.MergeRequest{
		{IID: 1, Title: "Add parser", WebURL: "https://gitlab.example.com/g/p/-/merge_requests/1"},
		{IID: 2, Title: "Fix build"},
	}
	comments := map[int][]vcs.Comment{
		1: {
			{ID: 11, Author: "Alice", Body: "rename this", CreatedAt: t0, FilePath: "src/Main.java", Line: 12, Snippet: "int a;\nint b;\nint c;"},
			{ID: 12, Author: "Bob", Body: "agreed", CreatedAt: t0.Add(time.Hour), FilePath: "src/Main.java", Line: 12},
			{ID: 13, Author: "Carol", Body: "overall fine", CreatedAt: t0.Add(2 * time.Hour)},
		},
		2: {
			{ID: 21, Author: "Dan", Body: "typo", CreatedAt: t0, FilePath: "README.md", Line: 3},
		},
	}
	return mrs, comments
}

const wantMarkdown = "# GitLab MR Comments Export\n\n" +
	"## MR !1: Add parser\n\n" +
	"<https://gitlab.example.com/g/p/-/merge_requests/1>\n\n" +
	"### src/Main.java:12\n\n" +
	"```java\nint a;\nint b;\nint c;\n```\n\n" +
	"**Alice** (2024-03-01T10:00:00Z): rename this\n\n" +
	"**Bob** (2024-03-01T11:00:00Z): agreed\n\n" +
	"---\n\n" +
	"### General Comments\n\n" +
	"**Carol** (2024-03-01T12:00:00Z): overall fine\n\n" +
	"---\n\n" +
	"## MR !2: Fix build\n\n" +
	"### README.md:3\n\n" +
	"**Dan** (2024-03-01T10:00:00Z): typo\n\n" +
	"---\n\n"

func TestMarkdown(t *testing.T) {
	agg := aggregate.Build(sample())
	assert.Equal(t, wantMarkdown, Markdown(agg, DefaultOptions()))
}

func TestMarkdownWithoutGeneralOrSnippets(t *testing.T) {
	agg := aggregate.Build(sample())
	out := Markdown(agg, Options{})
	assert.NotContains(t, out, "General Comments")
	assert.NotContains(t, out, "overall fine")
	assert.NotContains(t, out, "```")
	assert.Contains(t, out, "**Alice**")
}

func TestMarkdownEmpty(t *testing.T) {
	assert.Equal(t, "# GitLab MR Comments Export\n\n", Markdown(nil, DefaultOptions()))

	agg := aggregate.Build([]vcs.MergeRequest{{IID: 4, Title: "Quiet"}}, nil)
	assert.Contains(t, Markdown(agg, DefaultOptions()), "## MR !4: Quiet\n\n_No comments._")
}

func TestExportsAreDeterministic(t *testing.T) {
	mrs, comments := sample()
	first := aggregate.Build(mrs, comments)

	reversedMRs := []vcs.MergeRequest{mrs[1], mrs[0]}
	reversed := map[int][]vcs.Comment{}
	for iid, list := range comments {
		cp := make([]vcs.Comment, len(list))
		for i := range list {
			cp[len(list)-1-i] = list[i]
		}
		reversed[iid] = cp
	}
	second := aggregate.Build(reversedMRs, reversed)

	assert.Equal(t, Markdown(first, DefaultOptions()), Markdown(second, DefaultOptions()))
	csv1, err := CSV(first, DefaultOptions())
	require.NoError(t, err)
	csv2, err := CSV(second, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, csv1, csv2)
}

func TestFenceCodeBlock(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		lang  string
		fence string
	}{
		{"plain", "x := 1", "go", "```"},
		{"inline backticks", "use `x` here", "", "```"},
		{"triple fence inside", "```\ncode\n```", "markdown", "````"},
		{"long run", "a ````` b", "", "``````"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := FenceCodeBlock(tt.code, tt.lang)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(block, tt.fence+tt.lang+"\n"), block)
			assert.True(t, strings.HasSuffix(block, "\n"+tt.fence+"\n"), block)
			assert.Contains(t, block, tt.code)
		})
	}
}

func TestFenceCodeBlockNormalizesLineEndings(t *testing.T) {
	block, err := FenceCodeBlock("a\r\nb\n\n", "")
	require.NoError(t, err)
	assert.Equal(t, "```\na\nb\n```\n", block)
}

func TestFenceCodeBlockDegrades(t *testing.T) {
	block, err := FenceCodeBlock("a\x00b\xffc", "go")
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Reason, "invalid UTF-8")
	assert.Contains(t, fe.Reason, "control character")
	assert.Contains(t, block, `a\x00b`)
	assert.NotContains(t, block, "\x00")
	assert.True(t, strings.HasPrefix(block, "```go\n"))
}

func TestCheckSnippets(t *testing.T) {
	agg := aggregate.Build(
		[]vcs.MergeRequest{{IID: 1}},
		map[int][]vcs.Comment{1: {
			{ID: 1, Author: "a", Body: "x", CreatedAt: t0, FilePath: "a.go", Line: 1, Snippet: "ok"},
			{ID: 2, Author: "a", Body: "y", CreatedAt: t0, FilePath: "b.bin", Line: 2, Snippet: "\x01\x02"},
		}},
	)
	errs := CheckSnippets(agg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "b.bin:2")

	// Markdown still renders the escaped block.
	assert.Contains(t, Markdown(agg, DefaultOptions()), `\x01\x02`)
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "go", Language("cmd/main.go"))
	assert.Equal(t, "java", Language("src/Main.JAVA"))
	assert.Equal(t, "", Language("Makefile"))
}

func TestCSV(t *testing.T) {
	agg := aggregate.Build(sample())
	out, err := CSV(agg, DefaultOptions())
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		CSVHeader,
		{"1", "src/Main.java", "12", "Alice", "2024-03-01T10:00:00Z", "rename this"},
		{"1", "src/Main.java", "12", "Bob", "2024-03-01T11:00:00Z", "agreed"},
		{"1", "", "", "Carol", "2024-03-01T12:00:00Z", "overall fine"},
		{"2", "README.md", "3", "Dan", "2024-03-01T10:00:00Z", "typo"},
	}, records)
}

func TestCSVWithoutGeneral(t *testing.T) {
	out, err := CSV(aggregate.Build(sample()), Options{})
	require.NoError(t, err)
	assert.NotContains(t, out, "Carol")
}

func TestCSVRoundTripsBody(t *testing.T) {
	body := "first, \"quoted\" line\nsecond line"
	agg := aggregate.Build(
		[]vcs.MergeRequest{{IID: 1}},
		map[int][]vcs.Comment{1: {{ID: 1, Author: "a", Body: body, CreatedAt: t0, FilePath: "a.go", Line: 1}}},
	)
	out, err := CSV(agg, DefaultOptions())
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, body, records[1][5])
}

func TestCSVEmpty(t *testing.T) {
	out, err := CSV(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "mr_iid,file_path,line_number,author,created_at,body\n", out)
}
