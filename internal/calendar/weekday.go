package calendar

import (
	"fmt"
	"strings"
	"time"
)

// ParseWeekday accepts full or three-letter English day names, case-insensitive
func ParseWeekday(name string) (time.Weekday, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Monday, fmt.Errorf("unknown weekday %q", name)
}
