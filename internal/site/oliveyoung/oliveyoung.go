// Package oliveyoung is the site profile for the OliveYoung store: URL
// templates, cookie requirements, page fingerprints, resource rules, and
// the item fetch callback consumed by the crawl orchestrator.
package oliveyoung

import (
	"fmt"

	"github.com/kborae/catalog-crawler/internal/classify"
	"github.com/kborae/catalog-crawler/internal/policy"
)

const (
	BaseURL      = "https://www.oliveyoung.co.kr"
	BootstrapURL = BaseURL + "/store/main/main.do"

	productURLTemplate  = BaseURL + "/store/goods/getGoodsDetail.do?goodsNo=%s"
	categoryURLTemplate = BaseURL + "/store/display/getMCategoryList.do?dispCatNo=%s&prdSort=02&rowsPerPage=48"

	// Cloudflare serves its interstitial in an embedded challenge frame.
	ChallengeMarker = `iframe[src*="challenges.cloudflare.com"]`

	// FallbackCookie keeps a session usable when the Cloudflare clearance
	// cookies were not minted but the store session itself exists.
	FallbackCookie = "OYSESSIONID"
)

// RequiredCookies is the full set a healthy session carries.
var RequiredCookies = []string{"cf_clearance", "__cf_bm", "OYSESSIONID"}

func ProductURL(goodsNo string) string {
	return fmt.Sprintf(productURLTemplate, goodsNo)
}

func CategoryURL(categoryID string) string {
	return fmt.Sprintf(categoryURLTemplate, categoryID)
}

// Rules returns the resource policy for crawl contexts. Product images on
// the store's own asset hosts stay allowed: the detail page populates parts
// of its catalog data as a side effect of those image loads.
func Rules() policy.Rules {
	return policy.Rules{
		EssentialPaths: []string{
			"/getGoodsArtcAjax.do",
			"/getOptInfoListAjax.do",
		},
		AssetDomains: []string{"oliveyoung.co.kr"},
		ImageKeywords: []string{
			"goods", "product", "prd",
		},
		BlockedDomains: []string{
			"google-analytics.com",
			"googletagmanager.com",
			"facebook.com/tr",
			"doubleclick.net",
			"googlesyndication.com",
			"adsystem.com",
			"ads.yahoo.com",
			"amazon-adsystem.com",
		},
	}
}

// Selectors are the page markers the classifier checks, in the store's
// current markup.
func Selectors() classify.Selectors {
	return classify.Selectors{
		NotFound: "#error-contents.error-page.noProduct",
		Login:    ".loginArea.new-loginArea",
		Error:    "#error-contents",
		Content:  ".prd_name",
	}
}

func Fingerprints() classify.Fingerprints {
	return classify.Fingerprints{
		BotBlockTexts: []string{
			"checking your browser",
			"verify you are human",
			"사람인지 확인",
			"잠시만 기다리",
		},
		// A detail page without a product name after the re-check wait is a
		// dead item, not a rendering hiccup.
		MissingContentIsNotFound: true,
	}
}
