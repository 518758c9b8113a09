package types

import (
	"regexp"
	"strconv"
	"strings"
)

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// NameValidPattern guards against placeholder result rows (§6 regex
// contracts): a first- or last-name must start with a run of letters,
// periods, apostrophes or hyphens.
var NameValidPattern = regexp.MustCompile(`^[A-Za-z.'-]+`)

// PlacePattern is the §6 regex contract for recognizing a contending
// finish: a numeric place, "dnf", or "dq" (case-insensitive).
var PlacePattern = regexp.MustCompile(`(?i)^([0-9]+|dnf|dq)$`)

func parsePositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
