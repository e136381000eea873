package release

import (
	"regexp"
	"slices"

	"github.com/hbollon/go-edlib"
)

// numberRegex extracts sequence numbers from titles (e.g., "2", "3")
var numberRegex = regexp.MustCompile(`\b(\d+)\b`)

// MatchConfidence represents the confidence level of a title match.
type MatchConfidence int

const (
	ConfidenceNone   MatchConfidence = iota // Score < 0.70
	ConfidenceLow                           // Score >= 0.70
	ConfidenceMedium                        // Score >= 0.85
	ConfidenceHigh                          // Score >= 0.95
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MatchResult represents the result of a fuzzy title match.
type MatchResult struct {
	Title      string          // The matched candidate title
	Score      float64         // Jaro-Winkler similarity score (0.0-1.0)
	Confidence MatchConfidence // Confidence level based on score
}

// Matches reports the confidence that a release title names want.
func Matches(releaseTitle, want string) MatchConfidence {
	return MatchTitle(releaseTitle, []string{want}).Confidence
}

// MatchTitle finds the best Jaro-Winkler match for a parsed release title
// among candidates. Matching sequence numbers ("Alien 3") earn a bonus and
// mismatched ones a penalty.
func MatchTitle(parsed string, candidates []string) MatchResult {
	if len(candidates) == 0 {
		return MatchResult{Confidence: ConfidenceNone}
	}

	normalizedParsed := CleanTitle(parsed)
	parsedNumbers := extractNumbers(normalizedParsed)

	best := MatchResult{
		Score:      0,
		Confidence: ConfidenceNone,
	}

	for _, candidate := range candidates {
		normalizedCandidate := CleanTitle(candidate)

		score := float64(edlib.JaroWinklerSimilarity(normalizedParsed, normalizedCandidate))

		candidateNumbers := extractNumbers(normalizedCandidate)
		score = adjustScoreForNumbers(score, parsedNumbers, candidateNumbers)

		if score > best.Score {
			best.Title = candidate
			best.Score = score
		}
	}

	switch {
	case best.Score >= 0.95:
		best.Confidence = ConfidenceHigh
	case best.Score >= 0.85:
		best.Confidence = ConfidenceMedium
	case best.Score >= 0.70:
		best.Confidence = ConfidenceLow
	default:
		best.Confidence = ConfidenceNone
		best.Title = ""
	}

	return best
}

// extractNumbers returns all numeric sequences from a normalized title.
func extractNumbers(title string) []string {
	return numberRegex.FindAllString(title, -1)
}

// adjustScoreForNumbers rewards a shared sequence number and penalizes a
// missing or different one. Titles without numbers are left alone.
func adjustScoreForNumbers(score float64, parsedNums, candidateNums []string) float64 {
	switch {
	case len(parsedNums) == 0:
		return score
	case len(candidateNums) == 0:
		return score * 0.85
	case slices.ContainsFunc(parsedNums, func(n string) bool { return slices.Contains(candidateNums, n) }):
		return min(score*1.05, 1.0)
	default:
		return score * 0.90
	}
}
