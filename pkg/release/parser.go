package release

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	episodeRe    = regexp.MustCompile(`(?i)\bs(\d{1,2})[ .]?e(\d{1,3})\b`)
	crossRe      = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	seasonPackRe = regexp.MustCompile(`(?i)\b(?:s(\d{1,2})|season (\d{1,2}))\b`)
	yearRe       = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	groupRe      = regexp.MustCompile(`-([A-Za-z0-9]+)(?:\[[^\]]*\])?$`)
	separatorRe  = regexp.MustCompile(`[._]+`)
	bracketRe    = regexp.MustCompile(`^\[[^\]]*\]\s*`)
	extensionRe  = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|m4v|wmv|ts)$`)
)

// Parse extracts structured information from a release name such as
// "Show.Name.S01E02.720p.HDTV.x264-GROUP".
func Parse(name string) Info {
	info := Info{}
	name = extensionRe.ReplaceAllString(strings.TrimSpace(name), "")
	if m := groupRe.FindStringSubmatch(name); m != nil {
		info.Group = m[1]
	}
	name = bracketRe.ReplaceAllString(name, "")
	spaced := separatorRe.ReplaceAllString(name, " ")
	lower := strings.ToLower(spaced)

	info.Resolution = parseResolution(lower)
	info.Source = parseSource(lower)
	info.Codec = parseCodec(lower)
	info.Proper = strings.Contains(lower, "proper")
	info.Repack = strings.Contains(lower, "repack") || strings.Contains(lower, "rerip")

	// The title runs up to the first episode, season or year marker.
	cut := len(spaced)
	if loc := episodeRe.FindStringSubmatchIndex(spaced); loc != nil {
		info.Season = atoi(spaced[loc[2]:loc[3]])
		info.Episode = atoi(spaced[loc[4]:loc[5]])
		cut = min(cut, loc[0])
	} else if loc := crossRe.FindStringSubmatchIndex(spaced); loc != nil {
		info.Season = atoi(spaced[loc[2]:loc[3]])
		info.Episode = atoi(spaced[loc[4]:loc[5]])
		cut = min(cut, loc[0])
	} else if loc := seasonPackRe.FindStringSubmatchIndex(spaced); loc != nil {
		if loc[2] >= 0 {
			info.Season = atoi(spaced[loc[2]:loc[3]])
		} else {
			info.Season = atoi(spaced[loc[4]:loc[5]])
		}
		info.SeasonPack = true
		cut = min(cut, loc[0])
	}

	// A year at the very start is part of the title ("2012", "1917").
	for _, loc := range yearRe.FindAllStringSubmatchIndex(spaced, -1) {
		if loc[0] == 0 {
			continue
		}
		info.Year = atoi(spaced[loc[2]:loc[3]])
		cut = min(cut, loc[0])
		break
	}

	if cut == len(spaced) {
		cut = qualityStart(lower)
	}
	info.Title = strings.Trim(strings.TrimSpace(spaced[:cut]), "-([ ")
	return info
}

var qualityMarkers = []string{"2160p", "1080p", "720p", "480p", "bluray", "web dl", "web-dl", "webrip", "hdtv", "dvdrip", "x264", "x265"}

func qualityStart(lower string) int {
	cut := len(lower)
	for _, m := range qualityMarkers {
		if i := strings.Index(lower, m); i > 0 && i < cut {
			cut = i
		}
	}
	return cut
}

func parseResolution(name string) Resolution {
	switch {
	case strings.Contains(name, "2160p"), strings.Contains(name, "4k"), strings.Contains(name, "uhd"):
		return Resolution2160p
	case strings.Contains(name, "1080p"), strings.Contains(name, "1080i"):
		return Resolution1080p
	case strings.Contains(name, "720p"):
		return Resolution720p
	case strings.Contains(name, "480p"), strings.Contains(name, "sdtv"):
		return Resolution480p
	default:
		return ResolutionUnknown
	}
}

func parseSource(name string) Source {
	switch {
	case strings.Contains(name, "bluray"), strings.Contains(name, "blu ray"), strings.Contains(name, "bdrip"), strings.Contains(name, "brrip"):
		return SourceBluRay
	case strings.Contains(name, "web dl"), strings.Contains(name, "web-dl"), strings.Contains(name, "webdl"):
		return SourceWEBDL
	case strings.Contains(name, "webrip"), strings.Contains(name, "web rip"):
		return SourceWEBRip
	case strings.Contains(name, "hdtv"):
		return SourceHDTV
	case strings.Contains(name, "dvdrip"), strings.Contains(name, "dvd"):
		return SourceDVD
	case hasWord(name, "cam"), strings.Contains(name, "camrip"), strings.Contains(name, "hdcam"):
		return SourceCAM
	case hasWord(name, "ts"), strings.Contains(name, "telesync"), strings.Contains(name, "hdts"):
		return SourceTelesync
	default:
		return SourceUnknown
	}
}

func parseCodec(name string) Codec {
	switch {
	case strings.Contains(name, "x265"), strings.Contains(name, "h265"), strings.Contains(name, "hevc"):
		return CodecX265
	case strings.Contains(name, "x264"), strings.Contains(name, "h264"), strings.Contains(name, "avc"):
		return CodecX264
	case strings.Contains(name, "xvid"):
		return CodecXviD
	default:
		return CodecUnknown
	}
}

func hasWord(s, word string) bool {
	for _, f := range strings.Fields(s) {
		if f == word {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
