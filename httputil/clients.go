package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"lotpulse/config"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, for dealer sites
	Media    *http.Client // direct, for photo downloads
}

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2:   false,
		TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
		MaxIdleConnsPerHost: 4,
	}
	if proxyCfg != nil && proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	scraping := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}

	return &Clients{
		Scraping: scraping,
		Media:    &http.Client{Timeout: 60 * time.Second},
	}
}
