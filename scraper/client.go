package scraper

import (
	"net/http"
	"net/http/cookiejar"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"github.com/shopmon/go-shopify-monitor/config"
)

// newBrowserClient builds the primary client: browser fingerprint headers and
// a Cloudflare-bypass transport. The cookie jar is shared with the plain
// client so session cookies captured by either fetch strategy are visible to
// the cart prober.
func newBrowserClient(cfg *config.Config, baseURL, proxy string, jar *cookiejar.Jar) *resty.Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetCookieJar(jar)
	client.SetTimeout(cfg.RequestTimeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept", "application/json, text/html, */*")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	if proxy != "" {
		client.SetProxy(proxy)
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	return client
}

// newPlainClient builds the fallback client without the bypass transport.
func newPlainClient(cfg *config.Config, baseURL, proxy string, jar *cookiejar.Jar) *resty.Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetCookieJar(jar)
	client.SetTimeout(cfg.RequestTimeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept", "application/json, text/html, */*")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	if proxy != "" {
		client.SetProxy(proxy)
	}
	return client
}

// setTransport swaps the underlying round tripper on both clients. Tests use
// this to inject a mock transport.
func (s *Scraper) setTransport(rt http.RoundTripper) {
	s.browser.GetClient().Transport = rt
	s.plain.GetClient().Transport = rt
}
