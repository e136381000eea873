package session

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vmunix/swiper/internal/metadata"
)

var (
	titleRe    = regexp.MustCompile(`(?i)^([\p{L}\p{N}_ '"\-:,&.!?]+?)(?:\s+(?:s(?:eason)?\s?\d{1,2}.*|\(?\d{4}\)?(?:\W.*)?))?$`)
	yearRe     = regexp.MustCompile(`\b(\d{4})\b`)
	seasonEpRe = regexp.MustCompile(`(?i)\bs(?:eason)?\s?(\d{1,2})\s?(?:ep?(?:isode)?\s?(\d{1,2}))?`)
	seasonRe   = regexp.MustCompile(`(?i)(?:^|[^a-z])s(?:eason)?\s?(\d{1,2})(?:\D|$)`)
	episodeRe  = regexp.MustCompile(`(?i)(?:^|[^a-z])ep?(?:isode)?\s?(\d{1,2})(?:\D|$)`)
	numberRe   = regexp.MustCompile(`\d+`)
)

// ParseQuery pulls a title, year, season and episode out of free text such
// as "the office s2 e3", "heat (1995)" or "fargo season 1".
func ParseQuery(input string) metadata.Query {
	input = strings.TrimSpace(input)
	var q metadata.Query
	m := titleRe.FindStringSubmatch(input)
	if m == nil {
		return q
	}
	q.Title = strings.TrimSpace(m[1])
	rest := strings.TrimSpace(input[len(m[1]):])
	if rest == "" {
		return q
	}
	if y := yearRe.FindStringSubmatch(rest); y != nil {
		q.Year, _ = strconv.Atoi(y[1])
	}
	if se := seasonEpRe.FindStringSubmatch(rest); se != nil {
		q.Season, _ = strconv.Atoi(se[1])
		if se[2] != "" {
			q.Episode, _ = strconv.Atoi(se[2])
		}
	}
	return q
}

func captureSeason(input string) int {
	return captureInt(seasonRe, input)
}

func captureEpisode(input string) int {
	return captureInt(episodeRe, input)
}

func captureNumber(input string) int {
	s := numberRe.FindString(input)
	n, _ := strconv.Atoi(s)
	return n
}

func captureInt(re *regexp.Regexp, input string) int {
	m := re.FindStringSubmatch(input)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// response is one accepted answer to a prompt.
type response struct {
	name string
	re   *regexp.Regexp
}

var (
	respYes      = response{"yes", regexp.MustCompile(`(?i)^\s*(?:y|yes|yeah|yep|sure|ok)\b`)}
	respNo       = response{"no", regexp.MustCompile(`(?i)^\s*(?:n|no|nope|nah)\b`)}
	respDownload = response{"download", regexp.MustCompile(`(?i)\bd(?:ownload)?\b`)}
	respSeasonEp = response{"seasonOrEpisode", regexp.MustCompile(`(?i)(?:^|[^a-z])(?:s(?:eason)?\s?\d{1,2}|ep?(?:isode)?\s?\d{1,2})`)}
	respEpisode  = response{"episode", regexp.MustCompile(`(?i)(?:^|[^a-z])ep?(?:isode)?\s?\d{1,2}`)}
	respMonitor  = response{"monitor", regexp.MustCompile(`(?i)\bmonitor\b`)}
	respSearch   = response{"search", regexp.MustCompile(`(?i)\bsearch\b`)}
	respSeries   = response{"series", regexp.MustCompile(`(?i)\bseries\b`)}
	respNew      = response{"new", regexp.MustCompile(`(?i)\bnew\b`)}
	respNext     = response{"next", regexp.MustCompile(`(?i)\bnext\b`)}
	respPrev     = response{"prev", regexp.MustCompile(`(?i)\bprev(?:ious)?\b`)}
)

// match returns the single response that input matches. ok is false when
// none or more than one match.
func match(input string, possible []response) (response, bool) {
	var found []response
	for _, r := range possible {
		if r.re.MatchString(input) {
			found = append(found, r)
		}
	}
	if len(found) != 1 {
		return response{}, false
	}
	return found[0], true
}
