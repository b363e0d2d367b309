package service

import "strings"

// teamAliases maps a canonical club name to the spellings exchanges use.
var teamAliases = map[string][]string{
	"manchester united":       {"man utd", "man united", "mufc"},
	"manchester city":         {"man city", "mcfc"},
	"tottenham hotspur":       {"tottenham", "spurs"},
	"wolverhampton wanderers": {"wolves", "wolverhampton"},
	"west ham united":         {"west ham"},
	"newcastle united":        {"newcastle"},
	"nottingham forest":       {"nott'm forest", "nottm forest"},
	"brighton & hove albion":  {"brighton"},
	"crystal palace":          {"palace"},
	"leicester city":          {"leicester"},
	"aston villa":             {"villa"},
	"real madrid":             {"real madrid cf"},
	"barcelona":               {"fc barcelona", "barca"},
	"atletico madrid":         {"atletico", "atleti"},
	"bayern munich":           {"bayern", "fc bayern"},
	"borussia dortmund":       {"dortmund", "bvb"},
	"paris saint-germain":     {"psg", "paris sg"},
	"inter milan":             {"inter", "internazionale"},
	"ac milan":                {"milan"},
	"juventus":                {"juve"},
}

var nameSuffixes = []string{" fc", " cf", " sc", " afc", " united", " city"}

// NormalizeTeam lowercases a team name and strips club suffixes. Suffixes
// are removed in order, so "Manchester United FC" becomes "manchester".
func NormalizeTeam(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, suf := range nameSuffixes {
		n = strings.TrimSuffix(n, suf)
	}
	return strings.TrimSpace(n)
}

// TeamAliases returns every spelling worth searching for name.
func TeamAliases(name string) []string {
	norm := NormalizeTeam(name)
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(norm)
	add(strings.ToLower(strings.TrimSpace(name)))

	for canonical, aliases := range teamAliases {
		if norm == canonical || contains(aliases, norm) {
			add(canonical)
			for _, a := range aliases {
				add(a)
			}
			break
		}
	}
	return out
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// TeamMatchScore returns 0.9 when any alias of team appears in text and
// otherwise the best similarity ratio between an alias and the text.
func TeamMatchScore(team, text string) float64 {
	lower := strings.ToLower(text)
	best := 0.0
	for _, alias := range TeamAliases(team) {
		var score float64
		if strings.Contains(lower, alias) {
			score = 0.9
		} else {
			score = Similarity(alias, lower)
		}
		if score > best {
			best = score
		}
	}
	return best
}

// Similarity is the Ratcliff/Obershelp ratio 2*M/T, where M counts the
// characters in recursively found longest common blocks and T is the
// combined length. Identical strings score 1.
func Similarity(a, b string) float64 {
	ra, rb := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingChars(ra, rb)) / float64(total)
}

func matchingChars(a, b []rune) int {
	i, j, k := longestBlock(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingChars(a[:i], b[:j]) + matchingChars(a[i+k:], b[j+k:])
}

// longestBlock finds the longest common substring, preferring the one
// that ends earliest in a and then in b.
func longestBlock(a, b []rune) (int, int, int) {
	bestI, bestJ, bestK := 0, 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestK {
					bestK = cur[j]
					bestI = i - bestK
					bestJ = j - bestK
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, bestK
}
