package budget

import (
	"strconv"

	"github.com/roach88/koloss/internal/term"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// CheckDepth validates a recursion or search depth against max.
// A max <= 0 disables the bound.
func CheckDepth(depth, max int) error {
	if max > 0 && depth > max {
		return term.NewResourceExhausted("depth", int64(max)).
			WithDetail("depth", strconv.Itoa(depth))
	}
	return nil
}
