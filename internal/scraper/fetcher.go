// Package scraper is the boundary to the Web-CALIB portal. Everything in
// here is best-effort: the portal's HTML is inconsistent between pages and
// deployments, so extraction works through ordered fallback strategies and
// failures surface as accumulated error strings rather than aborting a run.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"webcalib-bridge/internal/config"
	"webcalib-bridge/internal/model"
)

// Fetcher produces raw mail records from an upstream portal. The returned
// string slice accumulates non-fatal per-page errors; callers must inspect
// it even when err is nil, since a partially failed run still "succeeds"
// with whatever it could extract. err is reserved for cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, cfg config.ScraperConfig) ([]model.RawMail, []string, error)
}

// PortalFetcher scrapes Web-CALIB over plain HTTP with a cookie session.
type PortalFetcher struct {
	client *http.Client
}

// NewPortalFetcher returns a fetcher with a fresh cookie jar.
func NewPortalFetcher() *PortalFetcher {
	jar, _ := cookiejar.New(nil)
	return &PortalFetcher{client: &http.Client{Jar: jar}}
}

type mailLink struct {
	href    string
	subject string
}

// Fetch logs in, walks the message list, and parses every reachable detail
// page. Login or list failures yield an empty result plus error strings.
func (f *PortalFetcher) Fetch(ctx context.Context, cfg config.ScraperConfig) ([]model.RawMail, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	var errs []string

	if err := f.login(ctx, cfg); err != nil {
		errs = append(errs, fmt.Sprintf("login failed: %v", err))
		return nil, errs, nil
	}

	links, err := f.listMailLinks(ctx, cfg)
	if err != nil {
		errs = append(errs, fmt.Sprintf("message list failed: %v", err))
		return nil, errs, nil
	}
	logrus.Infof("Found %d mail links on the list page", len(links))

	var mails []model.RawMail
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return mails, errs, err
		}

		detailURL, err := resolveURL(cfg.BaseURL, link.href)
		if err != nil {
			errs = append(errs, fmt.Sprintf("bad detail link %q: %v", link.href, err))
			continue
		}

		html, err := f.get(ctx, detailURL)
		if err != nil {
			errs = append(errs, fmt.Sprintf("detail fetch failed (%s): %v", link.href, err))
			continue
		}

		mail, err := ParseMailDetail(html, link.href, link.subject)
		if err != nil {
			errs = append(errs, fmt.Sprintf("detail parse failed (%s): %v", link.href, err))
			continue
		}
		mails = append(mails, mail)
	}

	logrus.Infof("Scraped %d mails (%d errors)", len(mails), len(errs))
	return mails, errs, nil
}

func (f *PortalFetcher) login(ctx context.Context, cfg config.ScraperConfig) error {
	loginURL, err := resolveURL(cfg.BaseURL, cfg.LoginURL)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("username", cfg.Username)
	form.Set("password", cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("login returned status %d", resp.StatusCode)
	}
	return nil
}

func (f *PortalFetcher) listMailLinks(ctx context.Context, cfg config.ScraperConfig) ([]mailLink, error) {
	listURL, err := resolveURL(cfg.BaseURL, cfg.ListURL)
	if err != nil {
		return nil, err
	}

	html, err := f.get(ctx, listURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse list page: %w", err)
	}

	// Most specific pattern first; wider nets only when nothing matched.
	selectors := []string{
		`a[href*="message_management33_view"]`,
		`a[href*="message-detail"]`,
		`a[href*="messageNo"]`,
		`a[href*="messageId"]`,
		`table a[href]`,
	}

	seen := make(map[string]struct{})
	var links []mailLink
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok || href == "" {
				return
			}
			if _, dup := seen[href]; dup {
				return
			}
			seen[href] = struct{}{}
			links = append(links, mailLink{
				href:    href,
				subject: strings.TrimSpace(sel.Text()),
			})
		})
		if len(links) > 0 {
			break
		}
	}

	return links, nil
}

func (f *PortalFetcher) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func resolveURL(base, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
