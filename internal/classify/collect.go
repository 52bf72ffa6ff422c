package classify

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Selectors name the marker elements a site's pages carry.
type Selectors struct {
	NotFound string
	Login    string
	Error    string
	Content  string
}

// Collect gathers classification signals from a rendered page. When the
// content marker is absent it waits once for recheckWait and looks again,
// so late-rendered pages are not misread as empty.
func Collect(page playwright.Page, sel Selectors, recheckWait time.Duration) (Signals, error) {
	var sig Signals

	body, err := page.Locator("body").InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(5000),
	})
	if err != nil {
		return sig, fmt.Errorf("failed to read page body: %w", err)
	}
	sig.BodyText = body

	sig.NotFoundMarker = present(page, sel.NotFound)
	sig.LoginMarker = present(page, sel.Login)
	sig.ErrorMarker = present(page, sel.Error)
	sig.ContentMarker = present(page, sel.Content)

	if !sig.ContentMarker && sel.Content != "" && recheckWait > 0 {
		page.WaitForTimeout(float64(recheckWait.Milliseconds()))
		sig.ContentMarker = present(page, sel.Content)
	}

	return sig, nil
}

func present(page playwright.Page, selector string) bool {
	if selector == "" {
		return false
	}
	count, err := page.Locator(selector).Count()
	return err == nil && count > 0
}
