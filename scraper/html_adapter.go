package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"lotpulse/config"
	"lotpulse/models"
)

// maxInventoryPages bounds pagination so a broken next-page selector cannot
// loop forever.
const maxInventoryPages = 10

// HTMLAdapter scrapes server-rendered inventory pages using the selector
// set from the adapter's YAML config.
type HTMLAdapter struct {
	cfg    *config.AdapterConfig
	client *http.Client
}

func NewHTMLAdapter(cfg *config.AdapterConfig, client *http.Client) *HTMLAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTMLAdapter{cfg: cfg, client: client}
}

func (a *HTMLAdapter) Name() string {
	return a.cfg.ID
}

func (a *HTMLAdapter) FetchListings(ctx context.Context, dealerURL string, max int) ([]models.RawListing, error) {
	var all []models.RawListing
	pageURL := dealerURL

	for page := 1; page <= maxInventoryPages; page++ {
		body, err := a.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		listings, nextURL, err := parseInventoryHTML(a.cfg, body, pageURL)
		body.Close()
		if err != nil {
			return nil, Permanent(fmt.Errorf("parse page %d: %w", page, err))
		}

		all = append(all, listings...)
		log.Printf("HTML %s: page %d: %d listings (total %d)", a.cfg.ID, page, len(listings), len(all))

		if max > 0 && len(all) >= max {
			all = all[:max]
			break
		}
		if nextURL == "" || len(listings) == 0 {
			break
		}
		pageURL = nextURL

		if a.cfg.RateLimitMS > 0 {
			select {
			case <-time.After(time.Duration(a.cfg.RateLimitMS) * time.Millisecond):
			case <-ctx.Done():
				return nil, Transient(ctx.Err())
			}
		}
	}

	return all, nil
}

func (a *HTMLAdapter) fetchPage(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, Permanent(err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, Transient(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, Transient(fmt.Errorf("status %d", resp.StatusCode))
	default:
		resp.Body.Close()
		return nil, Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}
}

// parseInventoryHTML extracts listings from one inventory page and resolves
// the next-page link, if any.
func parseInventoryHTML(cfg *config.AdapterConfig, r io.Reader, pageURL string) ([]models.RawListing, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, "", err
	}

	base, _ := url.Parse(pageURL)
	sel := cfg.Selectors

	var listings []models.RawListing
	doc.Find(sel.Container).Each(func(_ int, card *goquery.Selection) {
		listing := models.RawListing{
			VIN: extractField(card, sel.VIN, sel.VINAttr),
		}

		if title := extractField(card, sel.Title, ""); title != "" {
			year, make, model := splitTitle(title)
			if year != 0 {
				listing.Year = &year
			}
			if make != "" {
				listing.Make = &make
			}
			if model != "" {
				listing.Model = &model
			}
		}

		if raw := extractField(card, sel.Price, ""); raw != "" {
			if price, ok := parsePrice(raw); ok {
				listing.Price = &price
			}
		}
		if raw := extractField(card, sel.Mileage, ""); raw != "" {
			if miles, ok := parseNumber(raw); ok {
				listing.Mileage = &miles
			}
		}
		if raw := extractField(card, sel.Condition, ""); raw != "" {
			cond := normalizeCondition(raw)
			listing.Condition = &cond
		}
		if raw := extractField(card, sel.FuelType, ""); raw != "" {
			listing.FuelType = &raw
		}
		if raw := extractField(card, sel.Transmission, ""); raw != "" {
			listing.Transmission = &raw
		}
		if raw := extractField(card, sel.StockNumber, ""); raw != "" {
			stock := strings.TrimSpace(strings.TrimPrefix(raw, "Stock #:"))
			listing.StockNumber = &stock
		}

		if sel.Link != "" {
			if href, ok := card.Find(sel.Link).First().Attr("href"); ok {
				listing.URL = resolveURL(base, href)
			}
		}
		if listing.URL == "" {
			listing.URL = pageURL
		}

		if sel.Photo != "" {
			attr := sel.PhotoAttr
			if attr == "" {
				attr = "src"
			}
			card.Find(sel.Photo).Each(func(_ int, img *goquery.Selection) {
				if src, ok := img.Attr(attr); ok && src != "" {
					listing.Photos = append(listing.Photos, resolveURL(base, src))
				}
			})
		}

		listings = append(listings, listing)
	})

	var nextURL string
	if sel.NextPage != "" {
		if href, ok := doc.Find(sel.NextPage).First().Attr("href"); ok && href != "" {
			nextURL = resolveURL(base, href)
		}
	}

	return listings, nextURL, nil
}

// extractField returns the attribute value when attr is set, otherwise the
// trimmed text of the first match.
func extractField(card *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	node := card.Find(selector).First()
	if node.Length() == 0 {
		return ""
	}
	if attr != "" {
		val, _ := node.Attr(attr)
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(node.Text())
}

var yearPattern = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\b`)

// splitTitle pulls year/make/model out of a listing title like
// "2018 Honda Civic LX Sedan".
func splitTitle(title string) (year int, make, model string) {
	loc := yearPattern.FindStringIndex(title)
	if loc == nil {
		return 0, "", strings.TrimSpace(title)
	}
	year, _ = strconv.Atoi(title[loc[0]:loc[1]])

	rest := strings.Fields(strings.TrimSpace(title[loc[1]:]))
	if len(rest) > 0 {
		make = rest[0]
	}
	if len(rest) > 1 {
		model = strings.Join(rest[1:], " ")
	}
	return year, make, model
}

var digitsPattern = regexp.MustCompile(`\d[\d,]*`)

func parsePrice(raw string) (float64, bool) {
	match := digitsPattern.FindString(raw)
	if match == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}

func parseNumber(raw string) (int, bool) {
	match := digitsPattern.FindString(raw)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func normalizeCondition(raw string) string {
	switch c := strings.ToLower(strings.TrimSpace(raw)); {
	case strings.Contains(c, "certified"):
		return models.ConditionCertified
	case strings.Contains(c, "new"):
		return models.ConditionNew
	default:
		return models.ConditionUsed
	}
}

func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
