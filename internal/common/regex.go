package common

import "regexp"

// FirstSubmatch tries each pattern in order and returns the first capture group
// of the first pattern that matches.
func FirstSubmatch(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}
