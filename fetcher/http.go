package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"apartment-tracker/utils"
)

// HTTPOptions configures the static-page fetcher.
type HTTPOptions struct {
	UserAgent   string
	PageTimeout time.Duration
	MaxRetries  int
}

// HTTPFetcher loads server-rendered pages with a single GET. There is no
// script execution, so WaitFor only checks the selector is present.
type HTTPFetcher struct {
	client *resty.Client
	retry  *utils.RetryConfig
}

// NewHTTPFetcher builds a resty client with browser-like headers.
func NewHTTPFetcher(opts HTTPOptions, logger *utils.Logger) *HTTPFetcher {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := opts.PageTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", ua)
	client.SetHeader("accept", "text/html,application/xhtml+xml")
	client.SetTimeout(timeout)

	return NewHTTPFetcherWithClient(client, &utils.RetryConfig{
		MaxAttempts: opts.MaxRetries,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
		Retryable:   retryable,
	})
}

// NewHTTPFetcherWithClient wraps an existing resty client.
func NewHTTPFetcherWithClient(client *resty.Client, retry *utils.RetryConfig) *HTTPFetcher {
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	return &HTTPFetcher{client: client, retry: retry}
}

func (f *HTTPFetcher) Load(ctx context.Context, url string) (Page, error) {
	var page *staticPage

	err := f.retry.Do(ctx, "get "+url, func() error {
		res, err := f.client.R().
			SetContext(ctx).
			Get(url)
		if err != nil {
			return classify("get", url, err)
		}
		if res.IsError() {
			return fmt.Errorf("get %s: %w: status %d", url, ErrNetwork, res.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			return fmt.Errorf("get %s: parse html: %w", url, err)
		}

		final := url
		if res.RawResponse != nil && res.RawResponse.Request != nil {
			final = res.RawResponse.Request.URL.String()
		}
		page = &staticPage{doc: doc, url: final}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// NewStaticPage wraps an already parsed document as a Page.
func NewStaticPage(doc *goquery.Document, url string) Page {
	return &staticPage{doc: doc, url: url}
}

type staticPage struct {
	doc *goquery.Document
	url string
}

func (p *staticPage) URL() string { return p.url }

func (p *staticPage) WaitFor(ctx context.Context, selector string, _ time.Duration) (*goquery.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("wait for", selector, err)
	}
	sel := p.doc.Find(selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return sel, nil
}

func (p *staticPage) Document(context.Context) (*goquery.Document, error) {
	return p.doc, nil
}

func (p *staticPage) Close() {}
