package walletgate

import (
	"fmt"
	"time"
)

// HumanizeElapsed renders the age of a session issued at issued, as seen at
// now: "just now" under a minute, then whole minutes, hours or days.
func HumanizeElapsed(issued, now time.Time) string {
	if issued.IsZero() {
		return ""
	}
	d := now.Sub(issued)
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return "just now"
	}

	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}
	for _, u := range units {
		if d >= u.size {
			n := int(d / u.size)
			if n == 1 {
				return fmt.Sprintf("1 %s ago", u.name)
			}
			return fmt.Sprintf("%d %ss ago", n, u.name)
		}
	}
	return "just now"
}
