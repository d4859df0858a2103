package notifier

import (
	"strings"
	"time"

	"signalbot/internal/pkg/text"
)

// telegram rejects messages above 4096 characters; leave room for markup.
const maxCardLen = 3800

// Field is one "name: value" row of a card.
type Field struct {
	Name  string
	Value string
}

// Card is a trade notification: a headline, the lane it concerns, a table
// of fields and an optional free-form note.
type Card struct {
	Icon   string
	Title  string
	Lane   string
	Trace  string
	Fields []Field
	Note   string
	At     time.Time
}

func (c *Card) Add(name, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	c.Fields = append(c.Fields, Field{Name: name, Value: value})
}

// Markdown renders the card for Telegram's legacy Markdown mode. Field rows
// go in a code block so the values are not parsed as markup.
func (c Card) Markdown() string {
	var b strings.Builder
	if head := strings.TrimSpace(c.Icon + " " + c.Title); head != "" {
		b.WriteString("*" + escape(head) + "*")
	}
	if c.Lane != "" {
		b.WriteString(" `" + fence(c.Lane) + "`")
	}
	b.WriteString("\n")

	if len(c.Fields) > 0 {
		width := 0
		for _, f := range c.Fields {
			if len(f.Name) > width {
				width = len(f.Name)
			}
		}
		b.WriteString("```\n")
		for _, f := range c.Fields {
			b.WriteString(f.Name + ":" + strings.Repeat(" ", width-len(f.Name)+1) + fence(f.Value) + "\n")
		}
		b.WriteString("```\n")
	}
	if note := strings.TrimSpace(c.Note); note != "" {
		b.WriteString(escape(note) + "\n")
	}
	if c.Trace != "" {
		b.WriteString("trace `" + fence(c.Trace) + "`\n")
	}
	if !c.At.IsZero() {
		b.WriteString(c.At.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return text.Truncate(strings.TrimSpace(b.String()), maxCardLen)
}

var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "'", "[", "\\[")

func escape(s string) string { return markdownEscaper.Replace(s) }

func fence(s string) string { return strings.ReplaceAll(s, "`", "'") }
