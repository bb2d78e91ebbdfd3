package l5features

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// ParseSelection turns a landmark selection such as "320", "1-10" or
// "20,34,7" plus optional cluster or cluster-group names into sorted,
// de-duplicated indices within the face mesh. Spaces are ignored and ranges
// are inclusive. Tokens that do not parse, unknown names and indices
// outside [0, FaceMeshLandmarks) are returned in rejected.
func ParseSelection(input string, clusters ...string) (indices []int, rejected []string) {
	seen := make(map[int]struct{})
	add := func(idx int) {
		if idx < 0 || idx >= l1frames.FaceMeshLandmarks {
			rejected = append(rejected, strconv.Itoa(idx))
			return
		}
		seen[idx] = struct{}{}
	}

	input = strings.ReplaceAll(input, " ", "")
	if input != "" {
		for _, part := range strings.Split(input, ",") {
			if lo, hi, ok := strings.Cut(part, "-"); ok && lo != "" {
				start, err1 := strconv.Atoi(lo)
				end, err2 := strconv.Atoi(hi)
				if err1 != nil || err2 != nil || end < start {
					rejected = append(rejected, part)
					continue
				}
				for i := start; i <= end; i++ {
					add(i)
				}
				continue
			}
			idx, err := strconv.Atoi(part)
			if err != nil {
				rejected = append(rejected, part)
				continue
			}
			add(idx)
		}
	}

	table := l1frames.FacialClusters()
	groups := l1frames.ClusterGroups()
	for _, name := range clusters {
		if c, ok := table.Lookup(name); ok {
			for _, idx := range c.Indices {
				add(idx)
			}
			continue
		}
		if idxs := l1frames.GroupIndices(table, groups, name); len(idxs) > 0 {
			for _, idx := range idxs {
				add(idx)
			}
			continue
		}
		rejected = append(rejected, name)
	}

	indices = make([]int, 0, len(seen))
	for idx := range seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	if len(rejected) > 0 {
		opsf("selection %q: rejected %v, using %d indices", input, rejected, len(indices))
	}
	return indices, rejected
}

// Labels identifies the subject and test of one recording.
type Labels struct {
	Subject string
	Test    string
}

// TrainingLabels derives labels from a recording's file name, which is
// expected to look like "<subject>_<test>.csv". The test name keeps any
// further underscores. A name without an underscore is used for both.
func TrainingLabels(path string) Labels {
	name := strings.TrimSuffix(filepath.Base(path), ".csv")
	subject, test, ok := strings.Cut(name, "_")
	if !ok {
		return Labels{Subject: name, Test: name}
	}
	return Labels{Subject: subject, Test: test}
}
