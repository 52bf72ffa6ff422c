package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kborae/catalog-crawler/internal/policy"
	"github.com/kborae/catalog-crawler/internal/session"
)

// Browser owns the playwright runtime and implements session.Engine: it
// runs the anti-bot bootstrap and constructs authenticated browsing
// contexts from stored session state.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string

	// Bootstrap behavior.
	BootstrapURL          string
	ChallengeMarker       string
	ChallengePollCount    int
	ChallengePollInterval time.Duration
	StabilizationDelay    time.Duration
	NavigationTimeout     time.Duration

	// Rules is attached to every crawl context. Bootstrap contexts run
	// without interception so the challenge widget can load everything it
	// wants.
	Rules policy.Rules
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "ko-KR,ko;q=0.9,en;q=0.8",
		TimezoneID:     "Asia/Seoul",
		Locale:         "ko-KR",
		ExtraHeaders: map[string]string{
			"sec-ch-ua":          `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
			"sec-ch-ua-mobile":   "?0",
			"sec-ch-ua-platform": `"Windows"`,
			"accept-language":    "ko-KR,ko;q=0.9,en;q=0.8",
			"accept-encoding":    "gzip, deflate, br",
		},
		ChallengePollCount:    10,
		ChallengePollInterval: 3 * time.Second,
		StabilizationDelay:    5 * time.Second,
		NavigationTimeout:     60 * time.Second,
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-features=VizDisplayCompositor",
			"--window-size=1920,1080",
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// BootstrapCookies navigates the bootstrap URL in a fresh, uninstrumented
// context, polls for the anti-bot challenge marker until it disappears,
// lets the page settle, and returns the cookie jar.
func (b *Browser) BootstrapCookies(ctx context.Context) ([]session.Cookie, error) {
	bc, err := b.newRawContext()
	if err != nil {
		return nil, err
	}
	defer bc.Close()

	page, err := bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap page: %w", err)
	}

	b.logger.Info("navigating to bootstrap URL", "url", b.opts.BootstrapURL)
	_, err = page.Goto(b.opts.BootstrapURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.opts.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap navigation failed: %w", err)
	}

	if err := b.awaitChallengeClearance(ctx, page); err != nil {
		return nil, err
	}

	// Basic load completion plus one stabilization delay; a slow network
	// idle is tolerated, the cookie read below decides success.
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(30000),
	}); err != nil {
		b.logger.Warn("networkidle wait timed out during bootstrap", "error", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.opts.StabilizationDelay):
	}

	raw, err := bc.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie jar: %w", err)
	}

	cookies := make([]session.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		})
	}

	b.logger.Info("bootstrap cookie jar captured", "cookies", len(cookies))
	return cookies, nil
}

// awaitChallengeClearance polls for the challenge marker; marker absent
// means cleared. Exhausting the poll budget with the marker still present
// fails the bootstrap attempt.
func (b *Browser) awaitChallengeClearance(ctx context.Context, page playwright.Page) error {
	if b.opts.ChallengeMarker == "" {
		return nil
	}

	for attempt := 1; attempt <= b.opts.ChallengePollCount; attempt++ {
		count, err := page.Locator(b.opts.ChallengeMarker).Count()
		if err != nil || count == 0 {
			if attempt > 1 {
				b.logger.Info("anti-bot challenge cleared", "attempt", attempt)
			}
			return nil
		}

		b.logger.Info("anti-bot challenge present, waiting",
			"attempt", attempt, "max", b.opts.ChallengePollCount)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.opts.ChallengePollInterval):
		}
	}

	return fmt.Errorf("anti-bot challenge not cleared after %d polls", b.opts.ChallengePollCount)
}

// NewContext constructs an authenticated crawl context: stored cookies are
// loaded into a fresh context and the resource policy is attached before
// any page is opened through it.
func (b *Browser) NewContext(ctx context.Context, state *session.State) (session.Context, error) {
	bc, err := b.newRawContext()
	if err != nil {
		return nil, err
	}

	if state != nil && len(state.Cookies) > 0 {
		if err := bc.AddCookies(toPlaywrightCookies(state.Cookies)); err != nil {
			bc.Close()
			return nil, fmt.Errorf("failed to load session cookies: %w", err)
		}
	}

	if err := b.opts.Rules.Attach(bc); err != nil {
		bc.Close()
		return nil, err
	}

	return &Context{bc: bc, timeout: b.opts.Timeout}, nil
}

func (b *Browser) newRawContext() (playwright.BrowserContext, error) {
	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:       &b.opts.UserAgent,
		AcceptDownloads: playwright.Bool(false),
		Locale:          &b.opts.Locale,
		TimezoneId:      &b.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
		ExtraHttpHeaders: b.opts.ExtraHeaders,
	}

	bc, err := b.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return bc, nil
}

func toPlaywrightCookies(cookies []session.Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			HttpOnly: playwright.Bool(c.HTTPOnly),
			Secure:   playwright.Bool(c.Secure),
		}
		if c.Expires > 0 {
			cookie.Expires = playwright.Float(c.Expires)
		}
		out = append(out, cookie)
	}
	return out
}

// Context wraps a playwright browser context behind the session.Context
// interface.
type Context struct {
	bc      playwright.BrowserContext
	timeout time.Duration
}

func (c *Context) NewPage() (playwright.Page, error) {
	page, err := c.bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(float64(c.timeout.Milliseconds()))
	return page, nil
}

func (c *Context) Close() error {
	return c.bc.Close()
}
