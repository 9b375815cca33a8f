package version

import (
	"strconv"
	"strings"
)

// Compare orders two dotted version strings. It returns -1, 0 or 1 when a is
// older than, equal to or newer than b. Components are compared numerically
// when both sides parse as integers; otherwise the comparison falls back to a
// lexicographic compare of the raw components. A missing component counts as
// zero, so "1.2" and "1.2.0" are equal.
func Compare(a, b string) int {
	as := components(a)
	bs := components(b)

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		ac := component(as, i)
		bc := component(bs, i)
		if ac == bc {
			continue
		}

		an, aerr := strconv.Atoi(ac)
		bn, berr := strconv.Atoi(bc)
		if aerr == nil && berr == nil {
			if an < bn {
				return -1
			}
			if an > bn {
				return 1
			}
			continue
		}

		if ac < bc {
			return -1
		}
		return 1
	}
	return 0
}

func components(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return strings.Split(v, ".")
}

func component(parts []string, i int) string {
	if i >= len(parts) {
		return "0"
	}
	c := strings.TrimSpace(parts[i])
	if c == "" {
		return "0"
	}
	return c
}
