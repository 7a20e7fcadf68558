// Package paper loads scientific papers from text files, HTML files and URLs,
// and enriches them with LLM-derived summaries and tags.
package paper

import (
	"errors"
	"strings"
)

// ErrUnsupportedSource is returned for links no loader understands.
var ErrUnsupportedSource = errors.New("paper: unsupported source")

// Link types.
const (
	LinkURL  = "url"
	LinkText = "txt"
	LinkHTML = "html"
)

// Paper type assessments.
const (
	TypeSingleProcess = "single_process"
	TypeReview        = "review"
	TypeUnsure        = "unsure"
)

// Source records where a paper was loaded from.
type Source struct {
	Link     string `json:"link"`
	LinkType string `json:"linktype,omitempty"`
}

// Section is one titled block of paper content.
type Section struct {
	Title        string `json:"title,omitempty"`
	Content      string `json:"content"`
	IsAdditional bool   `json:"is_additional_section"`
}

// Paper is a parsed paper plus the analysis attached to it.
type Paper struct {
	ID                   string    `json:"id"`
	DOI                  string    `json:"doi,omitempty"`
	Title                string    `json:"title,omitempty"`
	Source               Source    `json:"source"`
	Sections             []Section `json:"sections"`
	DescribesProcess     string    `json:"describes_process,omitempty"`
	TextAbstract         string    `json:"text_abstract,omitempty"`
	TextNovelty          string    `json:"text_novelty,omitempty"`
	TextIRR              string    `json:"text_irr,omitempty"`
	TextPriceSensitivity string    `json:"text_price_sensitivity,omitempty"`
	TagsDOE              []string  `json:"tags_doe,omitempty"`
	TagsFeedstocks       []string  `json:"tags_feedstocks,omitempty"`
	TagsTargetProduct    []string  `json:"tags_target_product,omitempty"`
}

// FullText returns the title followed by every non-additional section, separated
// by blank lines.
func (p *Paper) FullText() string {
	parts := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		if s.IsAdditional {
			continue
		}
		parts = append(parts, s.Content)
	}
	return p.Title + "\n\n" + strings.Join(parts, "\n\n")
}

// Analyzed reports whether the paper type has been assessed.
func (p *Paper) Analyzed() bool {
	return p.DescribesProcess != ""
}

// IsSingleProcess reports whether the paper describes one process.
func (p *Paper) IsSingleProcess() bool {
	return p.DescribesProcess == TypeSingleProcess
}
