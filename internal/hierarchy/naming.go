package hierarchy

import (
	"fmt"
	"strconv"
	"strings"

	"docarchive/internal/models"
)

const sequenceWidth = 3

// UnitName renders a generated name such as R001 or C014.
func UnitName(t models.UnitType, seq int) string {
	return fmt.Sprintf("%s%0*d", Initial(t), sequenceWidth, seq)
}

// ParseSequence extracts the numeric suffix of a generated name of type t.
// Hand-entered names that do not follow <Initial><digits> report false.
func ParseSequence(t models.UnitType, name string) (int, bool) {
	prefix := Initial(t)
	if prefix == "" || !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	digits := name[len(prefix):]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextSequence is max(existing generated sequence of type t) + 1, or 1 when
// none exist.
func NextSequence(t models.UnitType, existing []string) int {
	max := 0
	for _, name := range existing {
		if n, ok := ParseSequence(t, name); ok && n > max {
			max = n
		}
	}
	return max + 1
}
