package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbwatch/wbwatch/internal/models"
)

func TestResolvePriceSelectors(t *testing.T) {
	resolver := NewPriceResolver()

	tests := []struct {
		name     string
		html     string
		expected int
	}{
		{
			name:     "final price span",
			html:     `<html><body><span class="price-block__final-price">1 196 ₽</span></body></html>`,
			expected: 1196,
		},
		{
			name:     "final price ins with nbsp separator",
			html:     `<html><body><ins class="price-block__final-price">44&nbsp;404 ₽</ins></body></html>`,
			expected: 44404,
		},
		{
			name:     "data tag attribute",
			html:     `<html><body><div data-tag="finalPrice">2 500 ₽</div></body></html>`,
			expected: 2500,
		},
		{
			name:     "wallet price",
			html:     `<html><body><span class="price-block__wallet-price">980 ₽</span></body></html>`,
			expected: 980,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := resolver.Resolve(docFromHTML(t, tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, price)
		})
	}
}

func TestResolvePriceStructuredData(t *testing.T) {
	resolver := NewPriceResolver()

	html := `<html><head><script type="application/ld+json">
		{"@type": "Product", "offers": {"@type": "Offer", "price": "1196", "priceCurrency": "RUB"}}
	</script></head><body></body></html>`

	price, err := resolver.Resolve(docFromHTML(t, html))
	require.NoError(t, err)
	assert.Equal(t, 1196, price)
}

func TestResolvePriceMetaTags(t *testing.T) {
	resolver := NewPriceResolver()

	tests := []struct {
		name     string
		html     string
		expected int
	}{
		{
			name:     "og price amount",
			html:     `<html><head><meta property="og:price:amount" content="1196"></head><body></body></html>`,
			expected: 1196,
		},
		{
			name:     "marketing description",
			html:     `<html><head><meta name="description" content="Кроссовки купить за 44 404 ₽ в интернет-магазине"></head><body></body></html>`,
			expected: 44404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := resolver.Resolve(docFromHTML(t, tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, price)
		})
	}
}

func TestResolvePricePairTakesLower(t *testing.T) {
	resolver := NewPriceResolver()

	// Promotional price next to the crossed-out reference price.
	html := `<html><body><div class="prices"><ins>1 196 ₽</ins> <del>3 000 ₽</del></div></body></html>`

	price, err := resolver.Resolve(docFromHTML(t, html))
	require.NoError(t, err)
	assert.Equal(t, 1196, price)
}

func TestResolvePricePairReversedOrder(t *testing.T) {
	resolver := NewPriceResolver()

	html := `<html><body><div><del>3 000 ₽</del> <ins>1 196 ₽</ins></div></body></html>`

	price, err := resolver.Resolve(docFromHTML(t, html))
	require.NoError(t, err)
	assert.Equal(t, 1196, price)
}

func TestResolvePriceScatteredMinimum(t *testing.T) {
	resolver := NewPriceResolver()

	// 5 is below the plausibility bound and 2 000 000 above it; only the
	// amounts in between compete and the minimum wins.
	html := `<html><body>
		<p>5 ₽</p>
		<p>скидка на 2 400 ₽</p>
		<p>доставка от 1 196 ₽</p>
		<p>2 000 000 ₽</p>
	</body></html>`

	price, err := resolver.Resolve(docFromHTML(t, html))
	require.NoError(t, err)
	assert.Equal(t, 1196, price)
}

func TestResolvePriceOutOfStock(t *testing.T) {
	resolver := NewPriceResolver()

	tests := []struct {
		name string
		html string
	}{
		{
			name: "russian phrase overrides visible price",
			html: `<html><body><div>Нет в наличии</div><span class="price-block__final-price">999 ₽</span></body></html>`,
		},
		{
			name: "sold out phrase",
			html: `<html><body><div>Sold out</div></body></html>`,
		},
		{
			name: "withdrawn from sale",
			html: `<html><body><p>Товар снят с продажи</p></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := resolver.Resolve(docFromHTML(t, tt.html))
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.ErrOutOfStock))
			assert.Zero(t, price)
		})
	}
}

func TestResolvePriceNoCandidates(t *testing.T) {
	resolver := NewPriceResolver()

	price, err := resolver.Resolve(docFromHTML(t, `<html><body><p>Описание без цен</p></body></html>`))
	require.NoError(t, err)
	assert.Zero(t, price)
}

func TestParsePriceText(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		ok       bool
	}{
		{"1 196 ₽", 1196, true},
		{"44 404", 44404, true},
		{"1196", 1196, true},
		{"5", 0, false},
		{"2000000", 0, false},
		{"", 0, false},
		{"₽", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			price, ok := parsePriceText(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, price)
		})
	}
}
