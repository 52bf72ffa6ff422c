package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRules() Rules {
	return Rules{
		EssentialPaths: []string{"/getGoodsArtcAjax.do", "/getOptInfoListAjax.do"},
		AssetDomains:   []string{"image.example.co.kr"},
		ImageKeywords:  []string{"goods", "product"},
		BlockedDomains: []string{"google-analytics.com", "doubleclick.net", "facebook.net"},
	}
}

func TestRulesDecide(t *testing.T) {
	rules := testRules()

	tests := []struct {
		name         string
		url          string
		resourceType string
		want         Decision
	}{
		{
			name:         "essential API survives everything",
			url:          "https://www.example.co.kr/store/goods/getGoodsArtcAjax.do?goodsNo=A1",
			resourceType: "xhr",
			want:         Allow,
		},
		{
			name:         "essential API wins even on a blocked domain",
			url:          "https://doubleclick.net/getGoodsArtcAjax.do",
			resourceType: "xhr",
			want:         Allow,
		},
		{
			name:         "stylesheets always blocked",
			url:          "https://www.example.co.kr/css/main.css",
			resourceType: "stylesheet",
			want:         Block,
		},
		{
			name:         "product image on asset domain allowed",
			url:          "https://image.example.co.kr/goods/A000000123.jpg",
			resourceType: "image",
			want:         Allow,
		},
		{
			name:         "image on asset domain without keyword blocked",
			url:          "https://image.example.co.kr/banner/promo.jpg",
			resourceType: "image",
			want:         Block,
		},
		{
			name:         "image off the asset domain blocked",
			url:          "https://cdn.elsewhere.com/goods/A000000123.jpg",
			resourceType: "image",
			want:         Block,
		},
		{
			name:         "fonts blocked by type",
			url:          "https://www.example.co.kr/fonts/nanum",
			resourceType: "font",
			want:         Block,
		},
		{
			name:         "media blocked by type",
			url:          "https://www.example.co.kr/video/intro",
			resourceType: "media",
			want:         Block,
		},
		{
			name:         "font extension blocked regardless of reported type",
			url:          "https://www.example.co.kr/assets/nanum.woff2",
			resourceType: "other",
			want:         Block,
		},
		{
			name:         "tracking domain blocked",
			url:          "https://www.google-analytics.com/collect?v=1",
			resourceType: "script",
			want:         Block,
		},
		{
			name:         "document allowed by default",
			url:          "https://www.example.co.kr/store/goods/getGoodsDetail.do?goodsNo=A1",
			resourceType: "document",
			want:         Allow,
		},
		{
			name:         "first-party script allowed by default",
			url:          "https://www.example.co.kr/js/app.js",
			resourceType: "script",
			want:         Allow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Decide(tt.url, tt.resourceType))
		})
	}
}

func TestRulesDecideEmptyRules(t *testing.T) {
	var rules Rules

	// With no asset domains every image is blocked.
	assert.Equal(t, Block, rules.Decide("https://anywhere.com/pic.jpg", "image"))
	// Everything else falls through to allow.
	assert.Equal(t, Allow, rules.Decide("https://anywhere.com/page", "document"))
	assert.Equal(t, Allow, rules.Decide("https://anywhere.com/api", "xhr"))
}

func TestRulesImageGateWithoutKeywords(t *testing.T) {
	rules := Rules{AssetDomains: []string{"image.example.co.kr"}}

	// No keywords configured: domain match alone is enough.
	assert.Equal(t, Allow, rules.Decide("https://image.example.co.kr/banner/promo.jpg", "image"))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "block", Block.String())
}
