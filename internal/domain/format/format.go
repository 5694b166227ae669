// Package format splits assistant replies into prose and fenced-code segments
// for display. The transform is lossy and never written back.
package format

import (
	"regexp"
	"strings"
)

// DefaultLanguage is used for fences without a language tag.
const DefaultLanguage = "python"

type Kind string

const (
	KindText Kind = "text"
	KindCode Kind = "code"
)

// Segment is either prose (Language empty) or a fenced code body.
type Segment struct {
	Kind     Kind   `json:"kind"`
	Language string `json:"language,omitempty"`
	Body     string `json:"body"`
}

func Text(body string) Segment { return Segment{Kind: KindText, Body: body} }

func Code(lang, body string) Segment { return Segment{Kind: KindCode, Language: lang, Body: body} }

// fence: ```lang\n body ``` with an optional tag and a non-greedy body.
// An unmatched ``` never matches and stays in the surrounding text.
var fence = regexp.MustCompile("(?s)```([\\p{L}\\p{N}_]+)?\\n(.*?)```")

type Formatter struct {
	DefaultLanguage string
}

func New(defaultLang string) Formatter {
	if strings.TrimSpace(defaultLang) == "" {
		defaultLang = DefaultLanguage
	}
	return Formatter{DefaultLanguage: strings.ToLower(defaultLang)}
}

// Format uses the package default language.
func Format(text string) []Segment {
	return New(DefaultLanguage).Format(text)
}

func (f Formatter) Format(text string) []Segment {
	out := make([]Segment, 0, 4)
	pos := 0
	for _, m := range fence.FindAllStringSubmatchIndex(text, -1) {
		out = appendText(out, text[pos:m[0]])

		lang := f.DefaultLanguage
		if m[2] >= 0 {
			lang = strings.ToLower(text[m[2]:m[3]])
		}
		if body := strings.TrimSpace(text[m[4]:m[5]]); body != "" {
			out = append(out, Code(lang, body))
		}
		pos = m[1]
	}
	return appendText(out, text[pos:])
}

func appendText(out []Segment, run string) []Segment {
	if t := strings.TrimSpace(run); t != "" {
		out = append(out, Text(t))
	}
	return out
}
