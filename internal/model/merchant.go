package model

import (
	"strings"
	"unicode"
)

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var merchantSuffixes = []string{" llc", " inc", " corp", " corporation", " company", " co", " ltd", " limited"}

// CleanMerchant turns a bank statement payee into a readable merchant name:
// card-processor prefixes, a leading MM/DD stamp, a trailing reference
// number and corporate suffixes are removed, and the result is title cased.
func CleanMerchant(name string) string {
	name = strings.TrimSpace(name)
	upper := strings.ToUpper(name)
	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	words := strings.Fields(name)
	if n := len(words); n > 1 && len(words[n-1]) > 5 && isDigits(words[n-1]) {
		words = words[:n-1]
	}
	name = strings.Join(words, " ")

	for trimmed := true; trimmed; {
		trimmed = false
		lower := strings.ToLower(name)
		for _, suffix := range merchantSuffixes {
			if strings.HasSuffix(lower, suffix) {
				name = name[:len(name)-len(suffix)]
				trimmed = true
				break
			}
		}
	}
	return titleCase(strings.TrimRight(name, " ,."))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func titleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	for i, r := range runes {
		if i == 0 || unicode.IsSpace(runes[i-1]) || runes[i-1] == '-' || runes[i-1] == '/' {
			runes[i] = unicode.ToUpper(r)
		}
	}
	return string(runes)
}
