package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wbwatch/wbwatch/internal/models"
)

// Price plausibility bound, in whole rubles. Anything outside is a rating,
// an identifier or a count that happens to sit near a currency symbol.
const (
	minPlausiblePrice = 10
	maxPlausiblePrice = 500_000
)

// outOfStockPhrases is the fixed lexicon of unavailability synonyms. Any
// match disqualifies every price on the page.
var outOfStockPhrases = []string{
	"нет в наличии",
	"товар закончился",
	"распродано",
	"снят с продажи",
	"нет в продаже",
	"sold out",
	"out of stock",
}

// PriceResolver produces the single current purchasable price, rejecting
// crossed-out reference prices, loyalty prices and unrelated numbers.
type PriceResolver struct {
	pairPattern   *regexp.Regexp
	singlePattern *regexp.Regexp
	metaPatterns  []*regexp.Regexp
}

func NewPriceResolver() *PriceResolver {
	return &PriceResolver{
		pairPattern:   regexp.MustCompile(`(\d[\d\s]*)\s*₽\s*(\d[\d\s]*)\s*₽`),
		singlePattern: regexp.MustCompile(`(\d[\d\s]*)\s*₽`),
		metaPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)купить за\s+(\d[\d\s]*)\s*₽`),
			regexp.MustCompile(`(?i)цена\s+(\d[\d\s]*)\s*₽`),
			regexp.MustCompile(`(?i)стоимость\s+(\d[\d\s]*)\s*₽`),
			regexp.MustCompile(`(?i)за\s+(\d[\d\s]*)\s*₽`),
		},
	}
}

// Resolve returns the current price in rubles, 0 if no candidate survives,
// or ErrOutOfStock when the listing is explicitly unavailable.
func (r *PriceResolver) Resolve(doc *goquery.Document) (int, error) {
	pageText := normalizeText(doc.Text())

	if phrase, found := r.detectOutOfStock(pageText); found {
		return 0, models.NewExtractionError(models.ErrOutOfStock, "listing matched phrase "+strconv.Quote(phrase))
	}

	// Fast path: the final-price element under its historical names.
	if price, ok := r.fromSelectors(doc); ok {
		return price, nil
	}
	if price, ok := r.fromStructuredData(doc); ok {
		return price, nil
	}
	if price, ok := r.fromMetaTags(doc); ok {
		return price, nil
	}

	// Layout drift fallback: mine the rendered text itself.
	if price, ok := r.fromPricePair(pageText); ok {
		return price, nil
	}
	if price, ok := r.fromScatteredPrices(pageText); ok {
		return price, nil
	}

	return 0, nil
}

func (r *PriceResolver) detectOutOfStock(pageText string) (string, bool) {
	lower := strings.ToLower(pageText)
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func (r *PriceResolver) fromSelectors(doc *goquery.Document) (int, bool) {
	selectors := []string{
		"span.price-block__final-price",
		"ins.price-block__final-price",
		`[data-tag="finalPrice"]`,
		".price-block__wallet-price",
		".final-price",
		".j-final-price",
		".price-block__price",
	}

	for _, selector := range selectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if price, ok := parsePriceText(text); ok {
			return price, true
		}
	}

	return 0, false
}

func (r *PriceResolver) fromStructuredData(doc *goquery.Document) (int, bool) {
	data := structuredData(doc)

	paths := [][]string{
		{"offers", "price"},
		{"mainEntity", "offers", "price"},
		{"product", "offers", "price"},
	}
	for _, path := range paths {
		if text, ok := lookupPath(data, path...); ok {
			if price, ok := parsePriceText(text); ok {
				return price, true
			}
		}
	}

	return 0, false
}

func (r *PriceResolver) fromMetaTags(doc *goquery.Document) (int, bool) {
	for _, selector := range []string{
		`meta[property="og:price:amount"]`,
		`meta[itemprop="price"]`,
	} {
		if content, exists := doc.Find(selector).First().Attr("content"); exists {
			if price, ok := parsePriceText(content); ok {
				return price, true
			}
		}
	}

	// Marketing copy in the description and title carries the price too:
	// "купить за 44 404 ₽".
	sources := []string{
		normalizeText(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
		normalizeText(doc.Find("title").Text()),
	}
	for _, source := range sources {
		for _, pattern := range r.metaPatterns {
			if matches := pattern.FindStringSubmatch(source); len(matches) > 1 {
				if price, ok := parsePriceText(matches[1]); ok {
					return price, true
				}
			}
		}
	}

	return 0, false
}

// fromPricePair treats two adjacent currency amounts as a promotional price
// next to a crossed-out reference price. The lower one is what the buyer
// actually pays in the WB listing layout.
func (r *PriceResolver) fromPricePair(pageText string) (int, bool) {
	matches := r.pairPattern.FindStringSubmatch(pageText)
	if len(matches) < 3 {
		return 0, false
	}

	first, okFirst := parsePriceText(matches[1])
	second, okSecond := parsePriceText(matches[2])
	if !okFirst || !okSecond {
		return 0, false
	}

	if second < first {
		return second, true
	}
	return first, true
}

// fromScatteredPrices collects every currency-like amount and returns the
// minimum inside the plausibility bound.
func (r *PriceResolver) fromScatteredPrices(pageText string) (int, bool) {
	matches := r.singlePattern.FindAllStringSubmatch(pageText, -1)

	best := 0
	for _, match := range matches {
		price, ok := parsePriceText(match[1])
		if !ok {
			continue
		}
		if best == 0 || price < best {
			best = price
		}
	}

	return best, best > 0
}

// parsePriceText strips everything but digits and applies the plausibility
// bound. "1 196 ₽" -> 1196.
func parsePriceText(text string) (int, bool) {
	digits := regexp.MustCompile(`[^\d]`).ReplaceAllString(normalizeText(text), "")
	if digits == "" {
		return 0, false
	}

	price, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if price < minPlausiblePrice || price > maxPlausiblePrice {
		return 0, false
	}
	return price, true
}
