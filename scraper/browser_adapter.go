package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"lotpulse/config"
	"lotpulse/models"
)

// BrowserAdapter renders JavaScript-heavy inventory pages with a headless
// browser, then runs the same selector extraction as the HTML adapter.
// The browser is launched lazily and shared across fetches.
type BrowserAdapter struct {
	cfg *config.AdapterConfig

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewBrowserAdapter(cfg *config.AdapterConfig) *BrowserAdapter {
	return &BrowserAdapter{cfg: cfg}
}

func (a *BrowserAdapter) Name() string {
	return a.cfg.ID
}

func (a *BrowserAdapter) FetchListings(ctx context.Context, dealerURL string, max int) ([]models.RawListing, error) {
	browser, err := a.ensureBrowser()
	if err != nil {
		// Missing browser binary is not retryable.
		return nil, Permanent(fmt.Errorf("launch browser: %w", err))
	}

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	})
	if err != nil {
		return nil, Transient(fmt.Errorf("new page: %w", err))
	}
	defer page.Close()

	timeout := 45 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if _, err := page.Goto(dealerURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return nil, Transient(fmt.Errorf("goto %s: %w", dealerURL, err))
	}

	// Give late inventory widgets a moment to render.
	if a.cfg.Selectors.Container != "" {
		if _, err := page.WaitForSelector(a.cfg.Selectors.Container, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(10000),
		}); err != nil {
			log.Printf("Browser %s: container never appeared on %s", a.cfg.ID, dealerURL)
		}
	}

	content, err := page.Content()
	if err != nil {
		return nil, Transient(fmt.Errorf("page content: %w", err))
	}

	listings, _, err := parseInventoryHTML(a.cfg, strings.NewReader(content), dealerURL)
	if err != nil {
		return nil, Permanent(fmt.Errorf("parse: %w", err))
	}

	if max > 0 && len(listings) > max {
		listings = listings[:max]
	}
	return listings, nil
}

func (a *BrowserAdapter) ensureBrowser() (playwright.Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.browser != nil && a.browser.IsConnected() {
		return a.browser, nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, err
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		return nil, err
	}

	a.pw = pw
	a.browser = browser
	return browser, nil
}

func (a *BrowserAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.browser != nil {
		a.browser.Close()
		a.browser = nil
	}
	if a.pw != nil {
		a.pw.Stop()
		a.pw = nil
	}
}
