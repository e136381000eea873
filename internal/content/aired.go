package content

import (
	"fmt"
	"time"
)

// AiredLabel describes an air time relative to now, such as "Airs today at
// 9:00pm" or "Aired yesterday". Returns "" for dates more than about six
// months away.
func AiredLabel(at, now time.Time) string {
	const day = 24 * time.Hour
	at = at.In(now.Location())
	y, m, d := now.Date()
	morning := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	diff := at.Sub(morning)

	switch {
	case diff < -182*day || diff > 182*day:
		return ""
	case diff < -7*day:
		return fmt.Sprintf("Aired %s, %s %d", at.Weekday(), at.Month(), at.Day())
	case diff < -day:
		return fmt.Sprintf("Aired %s", at.Weekday())
	case diff < 0:
		return "Aired yesterday"
	case diff < day:
		return "Airs today at " + clock(at)
	case diff < 2*day:
		return "Airs tomorrow at " + clock(at)
	case diff < 7*day:
		return fmt.Sprintf("Airs %s at %s", at.Weekday(), clock(at))
	default:
		return fmt.Sprintf("Airs %s, %s %d", at.Weekday(), at.Month(), at.Day())
	}
}

func clock(t time.Time) string {
	return t.Format("3:04pm")
}

// NextAirsLabel describes when the next episode of c airs.
func NextAirsLabel(c *Collection, now time.Time) string {
	ep, ok := c.NextAiring(now)
	if !ok {
		return "no upcoming episodes"
	}
	label := AiredLabel(*ep.release, now)
	if label == "" {
		return fmt.Sprintf("next S%02dE%02d airs %s", ep.season, ep.number, ep.release.Format("Jan 2, 2006"))
	}
	return fmt.Sprintf("S%02dE%02d %s", ep.season, ep.number, label)
}
