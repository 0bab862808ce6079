package sweetiebot

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

var mentionRegex = regexp.MustCompile("<@(!|&)?[0-9]+>|@everyone|@here")

// Pluralize converts i to a string, then appends str to the end, then appends s if it's plural
func Pluralize(i int64, str string) string {
	if i == 1 {
		return strconv.FormatInt(i, 10) + str
	}
	return strconv.FormatInt(i, 10) + str + "s"
}

// TimeDiff gets the largest nonzero time value and displays it
func TimeDiff(d time.Duration) string {
	seconds := int64(d.Seconds())
	if seconds <= 60 {
		return Pluralize(seconds, " second")
	}
	if seconds <= 60*60 {
		return Pluralize((seconds+1)/60, " minute")
	}
	days := (seconds + 100) / 86400
	hours := (seconds + 10 - (days * 86400)) / 3600
	minutes := (seconds - (days * 86400) - (hours * 3600)) / 60

	if days == 0 && minutes > 2 {
		return Pluralize(hours, " hour") + " and " + Pluralize(minutes, " minute")
	}
	if days == 0 {
		return Pluralize(hours, " hour")
	}
	if hours > 1 {
		return Pluralize(days, " day") + " and " + Pluralize(hours, " hour")
	}
	return Pluralize(days, " day")
}

// IsSpace returns true for ASCII whitespace
func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

// ParseArguments transforms a command line into an array of distinct arguments, while respecting quotes.
// The indices point at the start of each argument in s.
func ParseArguments(s string) ([]string, []int) {
	r := []string{}
	indices := []int{}
	l := len(s)
	for i := 0; i < l; i++ {
		c := s[i]
		if IsSpace(c) {
			continue
		}
		indices = append(indices, i)
		var start, end int
		if c == '"' && (i < 1 || s[i-1] != '\\') {
			i++
			start = i
			for i < l && (s[i] != '"' || s[i-1] == '\\') {
				i++
			}
			end = i
		} else {
			start = i
			i++
			for i < l && !IsSpace(s[i]) && (s[i] != '"' || s[i-1] == '\\') {
				i++
			}
			end = i
			i-- // the loop increment will step over the terminator
		}
		r = append(r, s[start:end])
	}
	return r, indices
}

// SanitizeOutput neutralizes pings and code fences so user content can be echoed inside a code block
func SanitizeOutput(s string) string {
	s = mentionRegex.ReplaceAllStringFunc(s, func(str string) string { return str[:1] + "\u200b" + str[1:] })
	return strings.Replace(s, "```", "\\`\\`\\`", -1)
}

// ReturnError wraps an error as a command response
func ReturnError(err error) (string, bool, *discordgo.MessageEmbed) {
	return "```\n" + SanitizeOutput(err.Error()) + "```", false, nil
}

// MapToSlice returns the sorted keys of a set
func MapToSlice(m map[string]bool) []string {
	s := make([]string, 0, len(m))
	for k := range m {
		s = append(s, k)
	}
	sort.Strings(s)
	return s
}

// GetCommandsInOrder returns the sorted names of the given commands
func GetCommandsInOrder(m map[CommandID]Command) []string {
	s := make([]string, 0, len(m))
	for _, v := range m {
		s = append(s, v.Info().Name)
	}
	sort.Strings(s)
	return s
}
