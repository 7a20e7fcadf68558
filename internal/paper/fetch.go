package paper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"maml/internal/logging"
)

const userAgent = "maml/1.0 (+paper loader)"

// maxPageBytes caps fetched HTML.
const maxPageBytes = 10 * 1024 * 1024

// Fetcher retrieves the HTML of a paper URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches static pages with a plain GET.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	logging.PaperDebug("Fetched %s (%d bytes)", url, len(body))
	return string(body), nil
}

// RodFetcher renders pages in headless Chrome so lazily loaded article bodies
// are present in the returned HTML.
type RodFetcher struct {
	// WaitSelector, when set, is awaited before the HTML is read.
	WaitSelector string
	Timeout      time.Duration
	// Bin overrides the browser binary; empty lets the launcher find or download one.
	Bin string
}

// Fetch implements Fetcher.
func (f *RodFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	l := launcher.New().Headless(true).Context(ctx)
	if f.Bin != "" {
		l = l.Bin(f.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to load %s: %w", url, err)
	}
	if f.WaitSelector != "" {
		if _, err := page.Element(f.WaitSelector); err != nil {
			return "", fmt.Errorf("selector %q never appeared on %s: %w", f.WaitSelector, url, err)
		}
	}
	content, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	logging.PaperDebug("Rendered %s (%d bytes)", url, len(content))
	return content, nil
}
