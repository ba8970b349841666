package bridge

import "regexp"

// tickPattern matches "(3/10)" or "( 3 / 10 )" anywhere in a line.
var tickPattern = regexp.MustCompile(`\(\s*[1-9][0-9]*\s*/\s*[1-9][0-9]*\s*\)`)

// IsTick reports whether line carries a progress marker. The numbers inside
// the marker are phase-local and deliberately ignored; callers count marker
// occurrences.
func IsTick(line string) bool {
	return tickPattern.MatchString(line)
}
