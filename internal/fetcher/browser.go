package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

const productURLFormat = "https://www.wildberries.ru/catalog/%s/detail.aspx"

// maskWebdriverScript suppresses the most trivial automation signal before
// any page script runs. This reduces detection, it does not guarantee it.
const maskWebdriverScript = `
Object.defineProperty(navigator, 'webdriver', {
	get: () => undefined
});
Object.defineProperty(navigator, 'plugins', {
	get: () => [1, 2, 3]
});
`

// BrowserOptions configures the headless session. Defaults match the target
// market so the session does not stand out.
type BrowserOptions struct {
	Headless       bool
	NavTimeout     time.Duration
	LandmarkWait   time.Duration
	SettleDelay    time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
	AcceptLanguage string
}

func DefaultBrowserOptions() *BrowserOptions {
	return &BrowserOptions{
		Headless:       true,
		NavTimeout:     30 * time.Second,
		LandmarkWait:   20 * time.Second,
		SettleDelay:    2 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "ru-RU",
		TimezoneID:     "Europe/Moscow",
		AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8",
	}
}

// BrowserFetcher drives a full headless browser to the product page and
// captures the rendered document after JavaScript has run. Every Fetch uses
// a freshly created profile directory under profileRoot so runs never share
// state; the directory is removed on every exit path.
type BrowserFetcher struct {
	opts        *BrowserOptions
	profileRoot string
	logger      *slog.Logger
}

func NewBrowserFetcher(profileRoot string, opts *BrowserOptions, logger *slog.Logger) *BrowserFetcher {
	if opts == nil {
		opts = DefaultBrowserOptions()
	}
	return &BrowserFetcher{
		opts:        opts,
		profileRoot: profileRoot,
		logger:      logger.With("component", "browser_fetcher"),
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, article string) (string, error) {
	profileDir, err := os.MkdirTemp(f.profileRoot, "profile-")
	if err != nil {
		return "", fmt.Errorf("failed to create profile dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(profileDir); err != nil {
			f.logger.Error("failed to remove profile dir", "dir", profileDir, "error", err)
		}
	}()

	pw, err := playwright.Run()
	if err != nil {
		return "", fmt.Errorf("failed to start playwright: %w", err)
	}
	defer pw.Stop()

	browserCtx, err := f.launch(pw, profileDir)
	if err != nil {
		return "", err
	}
	defer browserCtx.Close()

	if err := browserCtx.AddInitScript(playwright.Script{
		Content: playwright.String(maskWebdriverScript),
	}); err != nil {
		return "", fmt.Errorf("failed to add init script: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}

	url := fmt.Sprintf(productURLFormat, article)
	f.logger.Info("navigating to product page", "article", article, "profileDir", filepath.Base(profileDir))

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(f.opts.NavTimeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}

	// Landmark waits: body first, then the product heading. A missing
	// heading is not fatal; anti-bot interstitials have no h1 and the
	// degenerate-result check downstream catches those pages.
	if _, err := page.WaitForSelector("body", playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(f.opts.LandmarkWait.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("page body never appeared: %w", err)
	}

	if _, err := page.WaitForSelector("h1", playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(f.opts.LandmarkWait.Milliseconds())),
	}); err != nil {
		f.logger.Warn("product heading never appeared, capturing anyway", "article", article)
	}

	// Late-loading price widgets need a moment after the landmarks show up.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(f.opts.SettleDelay):
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to capture page content: %w", err)
	}

	f.logger.Info("captured rendered page", "article", article, "bytes", len(html))

	return html, nil
}

func (f *BrowserFetcher) launch(pw *playwright.Playwright, profileDir string) (playwright.BrowserContext, error) {
	browserCtx, err := pw.Chromium.LaunchPersistentContext(profileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(f.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-gpu",
			"--disable-extensions",
			"--no-first-run",
			"--window-size=1920,1080",
			"--lang=ru-RU,ru",
		},
		UserAgent:  playwright.String(f.opts.UserAgent),
		Locale:     playwright.String(f.opts.Locale),
		TimezoneId: playwright.String(f.opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  f.opts.ViewportWidth,
			Height: f.opts.ViewportHeight,
		},
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		ExtraHttpHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": f.opts.AcceptLanguage,
			"DNT":             "1",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return browserCtx, nil
}
