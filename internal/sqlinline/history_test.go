package sqlinline

import (
	"regexp"
	"strings"
	"testing"
)

var markerLine = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestHistoryQueriesCarryUniqueMarkers(t *testing.T) {
	queries := map[string]string{
		"QEnsureHistorySchema": QEnsureHistorySchema,
		"QUpsertHistory":       QUpsertHistory,
		"QSelectHistory":       QSelectHistory,
		"QListHistory":         QListHistory,
		"QDeleteHistory":       QDeleteHistory,
	}
	seen := map[string]string{}
	for name, q := range queries {
		first, _, _ := strings.Cut(strings.TrimSpace(q), "\n")
		if !markerLine.MatchString(first) {
			t.Fatalf("%s: missing marker, first line %q", name, first)
		}
		if other, dup := seen[first]; dup {
			t.Fatalf("%s reuses the marker of %s", name, other)
		}
		seen[first] = name
	}
}
