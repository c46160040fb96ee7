// Package command extracts search requests from comment text.
package command

import (
	"regexp"
	"strings"
)

// DefaultTrigger is the phrase that turns a comment line into a search
// command.
const DefaultTrigger = "furbot search"

// Request is the ordered list of tags parsed from a command. An empty
// request asks for a random result.
type Request struct {
	Tags []string
}

// Empty reports whether the request carries no tags.
func (r Request) Empty() bool {
	return len(r.Tags) == 0
}

// Contains reports whether tag is one of the requested tags.
func (r Request) Contains(tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any of the given tags was requested.
func (r Request) ContainsAny(tags []string) bool {
	for _, t := range tags {
		if r.Contains(t) {
			return true
		}
	}
	return false
}

// Parser recognizes command lines for a single trigger phrase.
type Parser struct {
	trigger string
	line    *regexp.Regexp
}

// NewParser builds a parser for trigger. An empty trigger falls back to
// DefaultTrigger. Matching is case-insensitive and tolerates a "u/" or
// "/u/" mention in front of the trigger.
func NewParser(trigger string) *Parser {
	trigger = strings.ToLower(strings.TrimSpace(trigger))
	if trigger == "" {
		trigger = DefaultTrigger
	}
	// Tags start after whitespace, so a "furbot searching" line holds no
	// command and Parse moves on to the next line.
	pattern := `(?:/?u/)?` + regexp.QuoteMeta(trigger) + `(?:\s(.*))?$`
	return &Parser{trigger: trigger, line: regexp.MustCompile(pattern)}
}

// Parse returns the tags following the trigger on the first command line
// of body. Backslashes are removed first so escaped markdown does not break
// the trigger. Tags are lowercased and split on whitespace; text after the
// first command line is ignored.
func (p *Parser) Parse(body string) Request {
	body = strings.ReplaceAll(body, `\`, "")
	for _, line := range strings.Split(body, "\n") {
		m := p.line.FindStringSubmatch(strings.ToLower(line))
		if m == nil {
			continue
		}
		return Request{Tags: strings.Fields(m[1])}
	}
	return Request{}
}

// HasTrigger reports whether any line of body contains the trigger,
// anywhere and case-insensitively.
func (p *Parser) HasTrigger(body string) bool {
	body = strings.ReplaceAll(body, `\`, "")
	for _, line := range strings.Split(body, "\n") {
		if strings.Contains(strings.ToLower(line), p.trigger) {
			return true
		}
	}
	return false
}
