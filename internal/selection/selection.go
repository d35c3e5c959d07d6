// Package selection resolves which merge requests an analysis covers.
package selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sanix-darker/mrnotes/internal/vcs"
)

// Select returns the merge requests to process.
//
// Without requested ids every labeled merge request is selected, ordered by IID.
// Otherwise the result follows the order of requested, with repeated ids collapsed,
// and the ids absent from labeled are returned in notFound.
func Select(requested []int, labeled []vcs.MergeRequest) (selected []vcs.MergeRequest, notFound []int) {
	byIID := make(map[int]vcs.MergeRequest, len(labeled))
	for _, mr := range labeled {
		if _, ok := byIID[mr.IID]; !ok {
			byIID[mr.IID] = mr
		}
	}

	if len(requested) == 0 {
		selected = make([]vcs.MergeRequest, 0, len(byIID))
		for _, mr := range byIID {
			selected = append(selected, mr)
		}
		sort.Slice(selected, func(i, j int) bool { return selected[i].IID < selected[j].IID })
		return selected, nil
	}

	seen := make(map[int]bool, len(requested))
	for _, iid := range requested {
		if seen[iid] {
			continue
		}
		seen[iid] = true
		if mr, ok := byIID[iid]; ok {
			selected = append(selected, mr)
		} else {
			notFound = append(notFound, iid)
		}
	}
	return selected, notFound
}

// ParseIDs parses a comma separated list of merge request IIDs such as "12, 15,18".
// Blank entries are ignored; anything else that is not a positive integer is an error.
func ParseIDs(input string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid merge request id %q: expected a positive integer", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
