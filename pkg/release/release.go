// Package release parses torrent release names and matches them against known titles.
package release

// Resolution represents the video resolution of a release.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	Resolution480p
	Resolution720p
	Resolution1080p
	Resolution2160p
)

// unknownStr is the string representation for unknown values.
const unknownStr = "unknown"

func (r Resolution) String() string {
	switch r {
	case Resolution480p:
		return "480p"
	case Resolution720p:
		return "720p"
	case Resolution1080p:
		return "1080p"
	case Resolution2160p:
		return "2160p"
	default:
		return unknownStr
	}
}

// Source represents the media source type of a release.
type Source int

const (
	SourceUnknown Source = iota
	SourceBluRay
	SourceWEBDL
	SourceWEBRip
	SourceHDTV
	SourceDVD
	SourceCAM
	SourceTelesync
)

func (s Source) String() string {
	switch s {
	case SourceBluRay:
		return "bluray"
	case SourceWEBDL:
		return "webdl"
	case SourceWEBRip:
		return "webrip"
	case SourceHDTV:
		return "hdtv"
	case SourceDVD:
		return "dvd"
	case SourceCAM:
		return "cam"
	case SourceTelesync:
		return "telesync"
	default:
		return unknownStr
	}
}

// IsTheatrical reports whether the source was recorded in a cinema.
func (s Source) IsTheatrical() bool {
	return s == SourceCAM || s == SourceTelesync
}

// Codec represents the video codec used in a release.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecX264
	CodecX265
	CodecXviD
)

func (c Codec) String() string {
	switch c {
	case CodecX264:
		return "x264"
	case CodecX265:
		return "x265"
	case CodecXviD:
		return "xvid"
	default:
		return unknownStr
	}
}

// Info contains parsed release information.
type Info struct {
	Title      string
	Year       int
	Season     int
	Episode    int // 0 for season packs and movies
	Resolution Resolution
	Source     Source
	Codec      Codec
	Group      string
	Proper     bool
	Repack     bool

	// SeasonPack is set for "S01" or "Season 1" without an episode.
	SeasonPack bool
}

// IsEpisode reports whether the release names a single episode.
func (i Info) IsEpisode() bool {
	return i.Season > 0 && i.Episode > 0
}
