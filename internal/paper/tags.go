package paper

import (
	_ "embed"
	"sort"
	"strings"
	"sync"
)

//go:embed doe_tags.txt
var doeTagsFile string

var (
	doeOnce sync.Once
	doeList []string
	doeSet  map[string]bool
)

func loadDOETags() {
	doeOnce.Do(func() {
		doeSet = make(map[string]bool)
		for _, line := range strings.Split(doeTagsFile, "\n") {
			tag := strings.TrimSpace(line)
			if tag == "" || doeSet[tag] {
				continue
			}
			doeSet[tag] = true
			doeList = append(doeList, tag)
		}
	})
}

// DOETags returns the Department of Energy tag vocabulary.
func DOETags() []string {
	loadDOETags()
	out := make([]string, len(doeList))
	copy(out, doeList)
	return out
}

// IsDOETag reports whether tag belongs to the DOE vocabulary.
func IsDOETag(tag string) bool {
	loadDOETags()
	return doeSet[tag]
}

// filterDOETags keeps known DOE tags, deduplicated and sorted, and returns the
// rejected ones separately.
func filterDOETags(tags []string) (kept, rejected []string) {
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		if IsDOETag(t) {
			kept = append(kept, t)
		} else {
			rejected = append(rejected, t)
		}
	}
	sort.Strings(kept)
	return kept, rejected
}
