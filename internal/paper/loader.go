package paper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"maml/internal/config"
	"maml/internal/knowledge"
	"maml/internal/logging"
)

// titleChars bounds the text handed to the title question.
const titleChars = 500

// Loader turns a link (file path or URL) into a parsed Paper.
type Loader struct {
	kb      knowledge.KnowledgeBase
	fetcher Fetcher
}

// NewLoader creates a loader. The knowledge base extracts title and DOI from
// plain text papers.
func NewLoader(kb knowledge.KnowledgeBase, fetcher Fetcher) *Loader {
	return &Loader{kb: kb, fetcher: fetcher}
}

// NewFetcher picks the plain HTTP or headless browser fetcher from config.
func NewFetcher(cfg config.PaperConfig, timeout time.Duration) Fetcher {
	if cfg.RenderJS {
		return &RodFetcher{Timeout: timeout}
	}
	return NewHTTPFetcher(timeout)
}

// LinkType classifies a link.
func LinkType(link string) (string, error) {
	lower := strings.ToLower(link)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return LinkURL, nil
	case strings.HasSuffix(lower, ".txt"):
		return LinkText, nil
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return LinkHTML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSource, link)
	}
}

// Load reads and parses the paper at link.
func (l *Loader) Load(ctx context.Context, link string) (*Paper, error) {
	kind, err := LinkType(link)
	if err != nil {
		return nil, err
	}
	timer := logging.StartTimer(logging.CategoryPaper, "load "+link)
	defer timer.Stop()

	p := &Paper{Source: Source{Link: link, LinkType: kind}}
	switch kind {
	case LinkText:
		data, err := os.ReadFile(link)
		if err != nil {
			return nil, fmt.Errorf("failed to read paper: %w", err)
		}
		if err := l.parseText(ctx, p, string(data)); err != nil {
			return nil, err
		}
	case LinkHTML:
		data, err := os.ReadFile(link)
		if err != nil {
			return nil, fmt.Errorf("failed to read paper: %w", err)
		}
		if err := applyHTML(p, filepath.Base(link), string(data)); err != nil {
			return nil, err
		}
	case LinkURL:
		if l.fetcher == nil {
			return nil, fmt.Errorf("%w: no fetcher configured for %s", ErrUnsupportedSource, link)
		}
		content, err := l.fetcher.Fetch(ctx, link)
		if err != nil {
			return nil, err
		}
		if err := applyHTML(p, link, content); err != nil {
			return nil, err
		}
	}

	p.ID = p.DOI
	if p.ID == "" {
		// No DOI: derive a stable id from the link so repeat loads hit the cache.
		p.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
		logging.PaperWarn("No DOI found for %s, using id %s", link, p.ID)
	}
	logging.Paper("Loaded paper %q (%s, %d sections)", p.Title, p.ID, len(p.Sections))
	return p, nil
}

// FromText wraps raw text as a single-section paper without any queries.
func FromText(text string) *Paper {
	return &Paper{Sections: []Section{{Content: text}}}
}

type detailAnswer struct {
	Answer string `json:"answer" validate:"required"`
}

func (l *Loader) parseText(ctx context.Context, p *Paper, text string) error {
	title, err := l.detail(ctx, knowledge.Truncate(text, titleChars), titleQuestion)
	if err != nil {
		return fmt.Errorf("failed to extract title: %w", err)
	}
	doi, err := l.detail(ctx, text, doiQuestion)
	if err != nil {
		return fmt.Errorf("failed to extract DOI: %w", err)
	}
	p.Title = title
	p.DOI = normalizeDOI(doi)
	p.Sections = []Section{{Content: text}}
	return nil
}

func (l *Loader) detail(ctx context.Context, text, question string) (string, error) {
	var ans detailAnswer
	if err := l.kb.AskStructured(ctx, text, fmt.Sprintf(detailInstruction, question), &ans); err != nil {
		return "", err
	}
	return strings.TrimSpace(ans.Answer), nil
}

func applyHTML(p *Paper, link, content string) error {
	parsed, err := ParseHTML(link, content)
	if err != nil {
		return err
	}
	p.Title = parsed.Title
	p.DOI = normalizeDOI(parsed.DOI)
	p.Sections = parsed.Sections
	if len(p.Sections) == 0 {
		logging.PaperWarn("No sections parsed from %s", link)
	}
	return nil
}

// normalizeDOI drops answers that are not DOIs and prefixes bare ones.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	switch {
	case doi == "", strings.Contains(lower, "unknown"), strings.Contains(lower, "not "), lower == "n/a", lower == "none":
		return ""
	case strings.HasPrefix(lower, "10."):
		return "https://doi.org/" + doi
	}
	return doi
}
