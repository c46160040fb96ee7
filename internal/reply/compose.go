// Package reply renders the markdown the bot posts.
package reply

import (
	"fmt"
	"strings"

	"github.com/vaisest/fakefurbot/internal/safety"
	"github.com/vaisest/fakefurbot/internal/search"
)

const separator = "---"

// Footer holds the operator details shown under every reply.
type Footer struct {
	ScoreFloor int
	Operator   string
	SourceURL  string
}

// Composer renders replies.
type Composer struct {
	footer string
}

// NewComposer renders the footer once.
func NewComposer(f Footer) *Composer {
	return &Composer{footer: renderFooter(f)}
}

// Footer returns the rendered footer.
func (c *Composer) Footer() string {
	return c.footer
}

// Results renders a search reply.
func (c *Composer) Results(author string, p search.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello, %s. %s\n\n", author, p.Explanation)
	b.WriteString(strings.Join(p.RequestTags, " "))
	b.WriteString("\n\n")
	b.WriteString(p.Result)
	b.WriteString("\n\n")
	if summary := tagSummary(p.PostTags, p.MoreTags); summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	c.writeFooter(&b)
	return b.String()
}

// Rejection renders the reply for a request the safety gate refused.
func (c *Composer) Rejection(author string, d safety.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello, %s.\n\n", author)
	switch d.Reason {
	case safety.ReasonTooManyTags:
		fmt.Fprintf(&b, "There are more than %d tags. Please try searching with fewer tags.\n\n", d.Limit)
	case safety.ReasonBlacklisted:
		fmt.Fprintf(&b, "The following tags are blacklisted and were in your search: %s\n\n",
			strings.Join(search.Escape(d.Tags), " "))
	default:
		b.WriteString("I could not run that search.\n\n")
	}
	c.writeFooter(&b)
	return b.String()
}

// Acknowledgment renders the thank-you reply to praise.
func (c *Composer) Acknowledgment(author string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you, %s! Happy to help.\n\n", author)
	c.writeFooter(&b)
	return b.String()
}

func (c *Composer) writeFooter(b *strings.Builder) {
	b.WriteString(separator)
	b.WriteString("\n\n")
	b.WriteString(c.footer)
}

func tagSummary(tags []string, more int) string {
	if len(tags) == 0 {
		return ""
	}
	s := "**^^Post ^^Tags:** " + superscript(strings.Join(tags, " "))
	if more > 0 {
		s += fmt.Sprintf(" **^^and ^^%d ^^more ^^tags**", more)
	}
	return s
}

func renderFooter(f Footer) string {
	if f.ScoreFloor <= 0 {
		f.ScoreFloor = search.DefaultScoreFloor
	}

	var b strings.Builder
	b.WriteString(superscript("By default this bot does not search for a specific rating."))
	b.WriteString(" ")
	b.WriteString(superscript("You can limit the search with `rating:s` \\(safe, no blacklist\\), `rating:q` \\(questionable\\), or `rating:e` \\(explicit\\)."))
	b.WriteString(" ")
	b.WriteString(superscript(fmt.Sprintf("Results have score limit of %d.", f.ScoreFloor)))
	b.WriteString("\n\n")
	b.WriteString(superscript("I am a bot. Any comments below 0 score will be removed."))
	if f.Operator != "" {
		b.WriteString(" ")
		b.WriteString(superscript(fmt.Sprintf("Please contact \\/u\\/%s if this bot is going crazy, to request features, or for any other reasons.", f.Operator)))
	}
	if f.SourceURL != "" {
		fmt.Fprintf(&b, " [%s](%s)", superscript("Source code."), f.SourceURL)
	}
	b.WriteString("\n")
	return b.String()
}

// superscript prefixes every word with the platform's superscript marker.
func superscript(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = "^^" + w
	}
	return strings.Join(words, " ")
}
