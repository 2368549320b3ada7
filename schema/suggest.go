package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

const maxSuggestions = 3

// Suggest returns a "did you mean" hint naming the candidates closest
// to target, or the empty string if none is near enough.
func Suggest(target string, candidates []string) string {
	type scored struct {
		name string
		dist int
	}
	limit := len(target) / 3
	if limit < 1 {
		limit = 1
	}
	var near []scored
	lower := strings.ToLower(target)
	for _, c := range candidates {
		if c == target {
			continue
		}
		d := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if d <= limit {
			near = append(near, scored{c, d})
		}
	}
	if len(near) == 0 {
		return ""
	}
	sort.SliceStable(near, func(i, j int) bool {
		if near[i].dist != near[j].dist {
			return near[i].dist < near[j].dist
		}
		return near[i].name < near[j].name
	})
	if len(near) > maxSuggestions {
		near = near[:maxSuggestions]
	}
	quoted := make([]string, 0, len(near))
	for _, s := range near {
		quoted = append(quoted, fmt.Sprintf("%q", s.name))
	}
	return "did you mean " + strings.Join(quoted, " or ") + "?"
}
