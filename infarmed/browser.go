package infarmed

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/dosesegura/dose-segura/logging"
)

// UserAgent is sent by the browser context
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultPortalURL is the portal home page
const DefaultPortalURL = "https://extranet.infarmed.pt/INFOMED-fo/"

// Page glue. These selectors follow the portal markup and nothing else
// depends on them.
const (
	advancedSearchLink = "text=Pesquisa Avançada"
	dciInput           = `#mainForm\:dci_input`
	searchButton       = `#mainForm\:btnDoSearch`
	resultsBody        = `#mainForm\:dt-medicamentos_data`
	resultRows         = `#mainForm\:dt-medicamentos_data tr`
	routeFilterLabel   = `#mainForm\:vias-admin_label`
)

const (
	formReadyTimeout = 20 * time.Second
	resultsTimeout   = 20 * time.Second
	downloadTimeout  = 60 * time.Second
	afterSearchPause = 1500
	afterOpenPause   = 1000
	filterMenuPause  = 300
)

const selectRouteJS = `(filterLabel) => {
  const items = document.querySelectorAll('#mainForm\\:vias-admin_items li');
  const match = Array.from(items).find((item) => item.textContent?.trim() === filterLabel);
  if (match) {
    match.click();
    return;
  }
  const input = document.getElementById('mainForm:vias-admin_input');
  const hiddenInput = document.querySelector('input[id="mainForm:vias-admin_hinput"]');
  if (!input || !hiddenInput) return;
  input.value = filterLabel;
  hiddenInput.value = filterLabel;
  input.dispatchEvent(new Event('change', { bubbles: true }));
}`

const fetchDocumentJS = `async (downloadId) => {
  const form = document.querySelector('form#mainForm');
  if (!form) throw new Error('Form not found');
  const formData = new FormData(form);
  formData.set(downloadId, downloadId);
  const response = await fetch('pesquisa-avancada.xhtml', { method: 'POST', body: formData });
  const bytes = new Uint8Array(await response.arrayBuffer());
  let binary = '';
  for (let i = 0; i < bytes.length; i += 0x8000) {
    binary += String.fromCharCode.apply(null, bytes.subarray(i, i + 0x8000));
  }
  return { status: response.status, contentType: response.headers.get('content-type') || '', data: btoa(binary) };
}`

// BrowserOptions configures the Chromium session
type BrowserOptions struct {
	PortalURL string
	Headless  bool
}

// BrowserPortal drives the portal through a Chromium page
type BrowserPortal struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	page      playwright.Page
	downloads chan playwright.Download
	responses chan playwright.Response
	closeOnce sync.Once
	closeErr  error
}

var _ Portal = (*BrowserPortal)(nil)

// BrowserOpener returns an Opener launching a new Chromium session per call
func BrowserOpener(opts BrowserOptions) Opener {
	return func(ctx context.Context) (Portal, error) {
		return LaunchBrowser(ctx, opts)
	}
}

// LaunchBrowser starts Chromium, opens the portal home page and navigates to
// the advanced search form. Engine start failures wrap ErrBrowserUnavailable.
func LaunchBrowser(ctx context.Context, opts BrowserOptions) (*BrowserPortal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.PortalURL == "" {
		opts.PortalURL = DefaultPortalURL
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	b := &BrowserPortal{
		pw:        pw,
		browser:   browser,
		downloads: make(chan playwright.Download, 1),
		responses: make(chan playwright.Response, 1),
	}

	if err := b.openSearchForm(opts.PortalURL); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *BrowserPortal) openSearchForm(portalURL string) error {
	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:       playwright.String(UserAgent),
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	b.page = page

	page.On("download", func(d playwright.Download) {
		select {
		case b.downloads <- d:
		default:
		}
	})
	page.On("response", func(r playwright.Response) {
		if !strings.Contains(r.Headers()["content-type"], "application/pdf") {
			return
		}
		select {
		case b.responses <- r:
		default:
		}
	})

	if _, err := page.Goto(portalURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("failed to open %s: %w", portalURL, err)
	}

	if err := page.Locator(advancedSearchLink).First().Click(); err != nil {
		return fmt.Errorf("failed to open advanced search: %w", err)
	}
	if err := page.Locator(dciInput).WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(float64(formReadyTimeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("advanced search form did not load: %w", err)
	}
	page.WaitForTimeout(afterOpenPause)
	return nil
}

// Search fills the DCI field and submits the form
func (b *BrowserPortal) Search(ctx context.Context, term string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := b.page.Locator(dciInput).Fill(term); err != nil {
		return "", fmt.Errorf("failed to fill search: %w", err)
	}
	return b.submit()
}

// ApplyRouteFilter picks an administration route and searches again
func (b *BrowserPortal) ApplyRouteFilter(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := b.page.Locator(routeFilterLabel).Click(); err != nil {
		return "", fmt.Errorf("failed to open route filter: %w", err)
	}
	b.page.WaitForTimeout(filterMenuPause)
	if _, err := b.page.Evaluate(selectRouteJS, label); err != nil {
		return "", fmt.Errorf("failed to select route %q: %w", label, err)
	}
	return b.submit()
}

func (b *BrowserPortal) submit() (string, error) {
	if err := b.page.Locator(searchButton).Click(); err != nil {
		return "", fmt.Errorf("failed to submit search: %w", err)
	}
	b.page.WaitForTimeout(afterSearchPause)

	if err := b.page.Locator(resultRows).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(resultsTimeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoResults, err)
	}

	inner, err := b.page.Locator(resultsBody).InnerHTML()
	if err != nil {
		return "", fmt.Errorf("failed to read results: %w", err)
	}
	return "<table><tbody>" + inner + "</tbody></table>", nil
}

// FetchDocument posts the search form with the document trigger from inside
// the page, reusing its session cookies
func (b *BrowserPortal) FetchDocument(ctx context.Context, docID string) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := b.page.Evaluate(fetchDocumentJS, docID)
	if err != nil {
		return nil, fmt.Errorf("in-page fetch failed: %w", err)
	}
	res, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected fetch result %T", raw)
	}

	encoded, _ := res["data"].(string)
	body, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fetched document: %w", err)
	}
	contentType, _ := res["contentType"].(string)

	return &Payload{
		Status:      toInt(res["status"]),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// ClickDocument clicks the document link and races the browser download
// against an intercepted PDF response
func (b *BrowserPortal) ClickDocument(ctx context.Context, docID string) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.drain()

	if err := b.page.Locator(fmt.Sprintf(`[id="%s"]`, docID)).Click(); err != nil {
		return nil, fmt.Errorf("failed to click %s: %w", docID, err)
	}

	return Race(ctx, b.waitDownload, b.waitPDFResponse)
}

func (b *BrowserPortal) drain() {
	for {
		select {
		case <-b.downloads:
		case <-b.responses:
		default:
			return
		}
	}
}

func (b *BrowserPortal) waitDownload(ctx context.Context) (*Payload, error) {
	select {
	case d := <-b.downloads:
		path, err := d.Path()
		if err != nil {
			return nil, fmt.Errorf("download did not complete: %w", err)
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read download: %w", err)
		}
		return &Payload{Status: 200, ContentType: "application/pdf", Body: body}, nil
	case <-time.After(downloadTimeout):
		return nil, errors.New("no download event")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *BrowserPortal) waitPDFResponse(ctx context.Context) (*Payload, error) {
	select {
	case r := <-b.responses:
		body, err := r.Body()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		p := &Payload{Status: r.Status(), ContentType: r.Headers()["content-type"], Body: body}
		if !p.HasPDFMagic() {
			return nil, errors.New("intercepted response is not a PDF")
		}
		return p, nil
	case <-time.After(downloadTimeout):
		return nil, errors.New("no PDF response")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the browser and stops the driver. Later calls return the
// first result.
func (b *BrowserPortal) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop driver: %w", err))
		}
		b.closeErr = errors.Join(errs...)
		logging.Debug("Browser closed")
	})
	return b.closeErr
}
