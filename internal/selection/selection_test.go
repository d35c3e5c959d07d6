package selection

import (
	"testing"

	"github.com/sanix-darker/mrnotes/internal/vcs"
	"github.com/stretchr/testify/assert"
)

func mrs(iids ...int) []vcs.MergeRequest {
	out := make([]vcs.MergeRequest, 0, len(iids))
	for _, iid := range iids {
		out = append(out, vcs.MergeRequest{IID: iid})
	}
	return out
}

func iids(list []vcs.MergeRequest) []int {
	out := make([]int, 0, len(list))
	for _, mr := range list {
		out = append(out, mr.IID)
	}
	return out
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name         string
		requested    []int
		labeled      []vcs.MergeRequest
		wantSelected []int
		wantNotFound []int
	}{
		{
			name:         "no ids selects all labeled by iid",
			labeled:      mrs(5, 1, 3),
			wantSelected: []int{1, 3, 5},
		},
		{
			name:         "intersection with not found",
			requested:    []int{2, 5, 9},
			labeled:      mrs(1, 2, 3, 5),
			wantSelected: []int{2, 5},
			wantNotFound: []int{9},
		},
		{
			name:         "caller order is kept",
			requested:    []int{5, 2},
			labeled:      mrs(1, 2, 3, 5),
			wantSelected: []int{5, 2},
		},
		{
			name:         "duplicates collapse",
			requested:    []int{3, 3, 1, 3, 8, 8},
			labeled:      mrs(1, 3),
			wantSelected: []int{3, 1},
			wantNotFound: []int{8},
		},
		{
			name:         "nothing labeled",
			requested:    []int{4},
			wantSelected: nil,
			wantNotFound: []int{4},
		},
		{
			name:         "duplicate labeled entries",
			labeled:      mrs(2, 2, 1),
			wantSelected: []int{1, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, notFound := Select(tt.requested, tt.labeled)
			if tt.wantSelected == nil {
				assert.Empty(t, selected)
			} else {
				assert.Equal(t, tt.wantSelected, iids(selected))
			}
			assert.Equal(t, tt.wantNotFound, notFound)
		})
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs(" 12, 15 ,,18 ")
	assert.NoError(t, err)
	assert.Equal(t, []int{12, 15, 18}, ids)

	ids, err = ParseIDs("")
	assert.NoError(t, err)
	assert.Empty(t, ids)

	for _, bad := range []string{"12,abc", "0", "-3", "1.5"} {
		_, err := ParseIDs(bad)
		assert.Error(t, err, bad)
	}
}
