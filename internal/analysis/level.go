package analysis

import "strings"

// ImportanceLevel represents the classification assigned to an email
type ImportanceLevel string

const (
	VeryImportant ImportanceLevel = "VERY_IMPORTANT" // Specific deadline AND critical action required
	Important     ImportanceLevel = "IMPORTANT"      // Useful information needed later
	Unimportant   ImportanceLevel = "UNIMPORTANT"    // Informational, no action needed
	Spam          ImportanceLevel = "SPAM"           // Marketing/promotional content
)

// severity orders the levels for tie-breaking. SPAM sorts last: it is a
// terminal category, not a milder grade of importance.
var severity = map[ImportanceLevel]int{
	VeryImportant: 3,
	Important:     2,
	Unimportant:   1,
	Spam:          0,
}

// Valid reports whether l is one of the four known levels.
func (l ImportanceLevel) Valid() bool {
	_, ok := severity[l]
	return ok
}

// Severity returns the tie-break rank of the level (higher = more severe).
// Unknown levels rank below everything.
func (l ImportanceLevel) Severity() int {
	if s, ok := severity[l]; ok {
		return s
	}
	return -1
}

// ParseLevel normalizes a raw model-emitted level string. Models
// occasionally emit compound values like "VERY_IMPORTANT|IMPORTANT"
// (sometimes with commas, slashes, or the literal word "or"); those
// collapse to the single highest-severity member present.
func ParseLevel(raw string) (ImportanceLevel, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	candidate := ImportanceLevel(strings.ToUpper(raw))
	if candidate.Valid() {
		return candidate, true
	}

	return collapseCompound(raw)
}

// compound delimiters observed in real provider output
var compoundSplitter = strings.NewReplacer("|", " ", "/", " ", ",", " ", ";", " ")

func collapseCompound(raw string) (ImportanceLevel, bool) {
	fields := strings.Fields(compoundSplitter.Replace(strings.ToUpper(raw)))

	best := ImportanceLevel("")
	found := false
	for _, f := range fields {
		l := ImportanceLevel(strings.Trim(f, "\"'`.:"))
		if l == "OR" || !l.Valid() {
			continue
		}
		if !found || l.Severity() > best.Severity() {
			best = l
			found = true
		}
	}
	return best, found
}
