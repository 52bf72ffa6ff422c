package oliveyoung

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kborae/catalog-crawler/internal/classify"
)

const detailPageHTML = `
<html>
<body>
	<div class="loc_history">
		<a class="goods_category1 on">스킨케어</a>
		<a class="goods_category2 on">로션</a>
		<a class="goods_category3">크림</a>
	</div>
	<p class="prd_brand"><a>라운드랩</a></p>
	<p class="prd_name">  자작나무 수분 로션 250ml  </p>
	<div class="prd_flag">
		<span class="icon_flag">세일</span>
		<span class="icon_flag">쿠폰</span>
		<span class="icon_flag"> </span>
	</div>
	<div class="prd_price">
		<span class="price-1"><strike>22,000원</strike></span>
		<span class="price-2"><strong>15,400</strong>원</span>
	</div>
	<div id="saleLayer">
		<div class="flex-item"><span class="label">오늘드림</span></div>
		<div class="flex-item"><span class="label">증정</span></div>
	</div>
	<ul class="prd_thumb_list">
		<li><img src="https://image.oliveyoung.co.kr/uploads/images/goods/85/A000000210002.jpg"></li>
		<li><img src="https://image.oliveyoung.co.kr/uploads/images/goods/85/A000000210002_1.jpg"></li>
		<li><img src=""></li>
	</ul>
	<div class="goods_buy"><button>바로구매</button></div>
</body>
</html>`

func TestParseProduct(t *testing.T) {
	product, err := ParseProduct(detailPageHTML, "A000000210002")
	require.NoError(t, err)

	assert.Equal(t, "A000000210002", product.GoodsNo)
	assert.Equal(t, "자작나무 수분 로션 250ml", product.ItemName)
	assert.Equal(t, "라운드랩", product.Brand)
	assert.Equal(t, 22000, product.Price)
	assert.Equal(t, 15400, product.SalePrice)
	assert.Equal(t, "스킨케어 > 로션", product.CategoryName, "only active breadcrumb levels join")
	assert.False(t, product.SoldOut)
	assert.Equal(t, []string{"세일", "쿠폰"}, product.Flags)
	assert.Equal(t, []string{"오늘드림", "증정"}, product.Benefits)

	require.Len(t, product.Images, 2)
	assert.Equal(t, "https://image.oliveyoung.co.kr/uploads/images/goods/550/A000000210002.jpg", product.Images[0])
	assert.Equal(t, "https://image.oliveyoung.co.kr/uploads/images/goods/550/A000000210002_1.jpg", product.Images[1])
}

func TestParseProductWithoutDiscount(t *testing.T) {
	html := `
	<html><body>
		<p class="prd_name">수분 크림</p>
		<span class="price-2"><strong>18,000</strong>원</span>
		<div class="goods_buy"></div>
	</body></html>`

	product, err := ParseProduct(html, "A1")
	require.NoError(t, err)

	assert.Equal(t, 18000, product.SalePrice)
	assert.Equal(t, 18000, product.Price, "no strike price means sale price is the price")
}

func TestParseProductSoldOut(t *testing.T) {
	html := `<html><body><p class="prd_name">단종 제품</p></body></html>`

	product, err := ParseProduct(html, "A1")
	require.NoError(t, err)
	assert.True(t, product.SoldOut, "missing buy box marks the item sold out")
}

func TestParseProductMissingName(t *testing.T) {
	html := `<html><body><div id="error-contents">페이지를 찾을 수 없습니다</div></body></html>`

	_, err := ParseProduct(html, "A1")
	assert.ErrorIs(t, err, classify.ErrNotFound)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"29,900원", 29900},
		{"1,234,567", 1234567},
		{"  15400 ", 15400},
		{"무료", 0},
		{"", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parsePrice(tt.in), "input %q", tt.in)
	}
}

func TestProductURL(t *testing.T) {
	assert.Equal(t,
		"https://www.oliveyoung.co.kr/store/goods/getGoodsDetail.do?goodsNo=A000000210002",
		ProductURL("A000000210002"))
}

func TestCategoryURL(t *testing.T) {
	assert.Equal(t,
		"https://www.oliveyoung.co.kr/store/display/getMCategoryList.do?dispCatNo=100000100010008&prdSort=02&rowsPerPage=48",
		CategoryURL("100000100010008"))
}

func TestRulesEssentialEndpointsSurviveInterception(t *testing.T) {
	rules := Rules()

	for _, url := range []string{
		"https://www.oliveyoung.co.kr/store/goods/getGoodsArtcAjax.do?goodsNo=A1",
		"https://www.oliveyoung.co.kr/store/goods/getOptInfoListAjax.do?goodsNo=A1",
	} {
		assert.Equal(t, "allow", rules.Decide(url, "xhr").String(), "url %s", url)
	}
}

func TestFingerprintsCatchKoreanInterstitial(t *testing.T) {
	prints := Fingerprints()

	verdict := prints.Classify(classify.Signals{BodyText: "잠시만 기다리십시오...", ContentMarker: true})
	assert.Equal(t, classify.BotBlocked, verdict)
}
