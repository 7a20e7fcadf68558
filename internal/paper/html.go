package paper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Parsed is the structure extracted from a paper's HTML.
type Parsed struct {
	Title    string
	DOI      string
	Sections []Section
}

// ParseHTML picks a publisher parser from the link host, falling back to
// markup detection for local files.
func ParseHTML(link, content string) (*Parsed, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	switch {
	case strings.Contains(link, "nature.com"):
		return parseNature(doc), nil
	case strings.Contains(link, "nih.gov"):
		return parseNIH(doc), nil
	case findFirst(doc, func(n *html.Node) bool { return hasClass(n, "c-article-section__content") }) != nil:
		return parseNature(doc), nil
	case findFirst(doc, func(n *html.Node) bool { return isElement(n, "div") && hasClass(n, "tsec") && hasClass(n, "sec") }) != nil:
		return parseNIH(doc), nil
	default:
		return parseGeneric(doc), nil
	}
}

// parseNature handles nature.com article pages.
func parseNature(doc *html.Node) *Parsed {
	p := &Parsed{Title: firstText(doc, "h1")}

	for _, item := range findAll(doc, func(n *html.Node) bool {
		return isElement(n, "li") && hasClass(n, "c-bibliographic-information__list-item")
	}) {
		if !strings.Contains(textContent(item), "DOI") {
			continue
		}
		if v := findFirst(item, func(n *html.Node) bool {
			return isElement(n, "span") && hasClass(n, "c-bibliographic-information__value")
		}); v != nil {
			p.DOI = strings.TrimSpace(textContent(v))
			break
		}
	}

	article := findFirst(doc, func(n *html.Node) bool { return isElement(n, "article") })
	if article == nil {
		return p
	}
	additional := false
	for _, sec := range findAll(article, func(n *html.Node) bool { return isElement(n, "section") }) {
		h2 := findFirst(sec, func(n *html.Node) bool { return isElement(n, "h2") })
		if h2 == nil {
			continue
		}
		title := collapse(textContent(h2))
		if isTrailingSection(title) {
			additional = true
		}
		body := findFirst(sec, func(n *html.Node) bool { return hasClass(n, "c-article-section__content") })
		if body == nil {
			continue
		}
		p.Sections = append(p.Sections, Section{
			Title:        title,
			Content:      collapse(textContent(body)),
			IsAdditional: additional,
		})
	}
	return p
}

// parseNIH handles PubMed Central article pages.
func parseNIH(doc *html.Node) *Parsed {
	p := &Parsed{Title: firstText(doc, "h1")}

	if a := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "a") && n.Parent != nil && isElement(n.Parent, "span") && hasClass(n.Parent, "doi")
	}); a != nil {
		href := attr(a, "href")
		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		}
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		p.DOI = href
	}

	additional := false
	for _, sec := range findAll(doc, func(n *html.Node) bool {
		return isElement(n, "div") && hasClass(n, "tsec") && hasClass(n, "sec")
	}) {
		h2 := findFirst(sec, func(n *html.Node) bool { return isElement(n, "h2") })
		if h2 == nil {
			continue
		}
		title := collapse(textContent(h2))
		if isTrailingSection(title) {
			additional = true
		}

		var blocks []string
		walkBlocks(sec, func(n *html.Node) bool {
			switch {
			case hasClass(n, "goto"), isElement(n, "h2"):
				return true
			case isElement(n, "p") && hasClass(n, "p"),
				isElement(n, "div") && hasClass(n, "table-wrap"):
				if text := collapse(textContent(n)); text != "" {
					blocks = append(blocks, text)
				}
				return true
			}
			return false
		})
		p.Sections = append(p.Sections, Section{
			Title:        title,
			Content:      strings.Join(blocks, "\n\n"),
			IsAdditional: additional,
		})
	}
	return p
}

// parseGeneric keeps the page title and the visible body text as one section.
func parseGeneric(doc *html.Node) *Parsed {
	title := firstText(doc, "h1")
	if title == "" {
		title = firstText(doc, "title")
	}
	p := &Parsed{Title: title}
	body := findFirst(doc, func(n *html.Node) bool { return isElement(n, "body") })
	if body == nil {
		body = doc
	}
	if text := collapse(textContent(body)); text != "" {
		p.Sections = []Section{{Content: text}}
	}
	return p
}

func isTrailingSection(title string) bool {
	switch strings.ToLower(strings.TrimSpace(title)) {
	case "reference", "references", "additional information":
		return true
	}
	return false
}

// =============================================================================
// DOM HELPERS
// =============================================================================

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// walkBlocks visits descendants of n in document order; visit returns true to
// stop descending into the node it was given.
func walkBlocks(n *html.Node, visit func(*html.Node) bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && visit(c) {
			continue
		}
		walkBlocks(c, visit)
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func firstText(doc *html.Node, tag string) string {
	if n := findFirst(doc, func(n *html.Node) bool { return isElement(n, tag) }); n != nil {
		return collapse(textContent(n))
	}
	return ""
}

func collapse(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
