// Package filenametoken implements the filename_prefix token grammar
// (spec.md §6.3): literal %...% tokens substituted with values drawn
// from the captured semantic field map and the current save's
// seed/size.
package filenametoken

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Values supplies every substitutable quantity for one save call.
type Values struct {
	Seed            int64
	Width           int
	Height          int
	PositivePrompt  string
	NegativePrompt  string
	ModelBaseName   string
}

var tokenPattern = regexp.MustCompile(`%([a-zA-Z]+)(?::([^%]*))?%`)

// Render substitutes every recognized token in prefix. Unrecognized
// tokens (unknown name, or a malformed argument) are left verbatim so
// a typo doesn't silently swallow part of the filename.
func Render(prefix string, v Values, now time.Time) string {
	return tokenPattern.ReplaceAllStringFunc(prefix, func(match string) string {
		sub := tokenPattern.FindStringSubmatch(match)
		name, arg := sub[1], sub[2]
		rendered, ok := renderToken(name, arg, v, now)
		if !ok {
			return match
		}
		return rendered
	})
}

func renderToken(name, arg string, v Values, now time.Time) (string, bool) {
	switch name {
	case "seed":
		return strconv.FormatInt(v.Seed, 10), true
	case "width":
		return strconv.Itoa(v.Width), true
	case "height":
		return strconv.Itoa(v.Height), true
	case "pprompt":
		return truncated(v.PositivePrompt, arg)
	case "nprompt":
		return truncated(v.NegativePrompt, arg)
	case "model":
		return truncated(v.ModelBaseName, arg)
	case "date":
		if arg == "" {
			return now.Format("20060102150405"), true
		}
		return formatDatePattern(arg, now), true
	default:
		return "", false
	}
}

// truncated renders value as-is, or truncated to arg characters when
// arg parses as a non-negative integer (spec.md §6.3,
// "%pprompt:<n>%" etc.). A malformed n leaves the token unsubstituted.
func truncated(value, arg string) (string, bool) {
	if arg == "" {
		return value, true
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return "", false
	}
	if n >= len(value) {
		return value, true
	}
	return value[:n], true
}

// dateTokens holds the six pattern tokens spec.md §6.3 names
// (yyyy MM dd hh mm ss); none is a substring of another, so a plain
// sequential ReplaceAll pass is order-independent.
var dateTokens = []struct {
	token  string
	format func(time.Time) string
}{
	{"yyyy", func(t time.Time) string { return fmt.Sprintf("%04d", t.Year()) }},
	{"MM", func(t time.Time) string { return fmt.Sprintf("%02d", t.Month()) }},
	{"dd", func(t time.Time) string { return fmt.Sprintf("%02d", t.Day()) }},
	{"hh", func(t time.Time) string { return fmt.Sprintf("%02d", t.Hour()) }},
	{"mm", func(t time.Time) string { return fmt.Sprintf("%02d", t.Minute()) }},
	{"ss", func(t time.Time) string { return fmt.Sprintf("%02d", t.Second()) }},
}

func formatDatePattern(pattern string, now time.Time) string {
	out := pattern
	for _, dt := range dateTokens {
		out = strings.ReplaceAll(out, dt.token, dt.format(now))
	}
	return out
}
