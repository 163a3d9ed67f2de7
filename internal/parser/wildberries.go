package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/wbwatch/wbwatch/internal/models"
)

// fieldStrategy is one attempt at locating a semantic field. Strategies are
// tried in fixed priority order; the first non-empty result wins.
type fieldStrategy func(doc *goquery.Document) (string, bool)

// WBParser extracts product fields from a rendered Wildberries product page.
// Each field is resolved by an ordered cascade: known selectors first, then
// embedded JSON-LD, then meta tags, then free-text pattern mining as the
// last resort.
type WBParser struct {
	prices *PriceResolver

	brandURLPattern     *regexp.Regexp
	brandScriptPatterns []*regexp.Regexp
	feedbackPatterns    []*regexp.Regexp
}

func NewWBParser() *WBParser {
	return &WBParser{
		prices:          NewPriceResolver(),
		brandURLPattern: regexp.MustCompile(`/brands/([^/"?]+)`),
		brandScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`"brand"\s*:\s*"([^"]+)"`),
			regexp.MustCompile(`"brandName"\s*:\s*"([^"]+)"`),
			regexp.MustCompile(`"vendor"\s*:\s*"([^"]+)"`),
		},
		feedbackPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(\d[\d\s,]*)\s*оцен(?:ок|ки|ка)`),
			regexp.MustCompile(`(\d[\d\s,]*)\s*отзыв(?:ов|а)?`),
			regexp.MustCompile(`(\d[\d\s,]*)\s*reviews?`),
		},
	}
}

// ParseProductPage extracts every field from the page. Missing fields stay
// nil; the caller decides whether an all-nil snapshot is acceptable.
func (p *WBParser) ParseProductPage(html string, article string) (*models.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	snapshot := models.NewSnapshot(article, models.MethodBrowserAutomation)

	if name, ok := p.ExtractName(doc); ok {
		snapshot.Name = models.String(name)
	}
	if brand, ok := p.ExtractBrand(doc); ok {
		snapshot.Brand = models.String(brand)
	}
	if rating, ok := p.ExtractRating(doc); ok {
		snapshot.Rating = models.Float64(rating)
	}
	if count, ok := p.ExtractFeedbackCount(doc); ok {
		snapshot.FeedbackCount = models.Int(count)
	}

	price, err := p.prices.Resolve(doc)
	if err != nil {
		return nil, err
	}
	if price > 0 {
		snapshot.Price = models.Int(price)
	}

	return snapshot, nil
}

func firstMatch(doc *goquery.Document, strategies []fieldStrategy) (string, bool) {
	for _, strategy := range strategies {
		if value, ok := strategy(doc); ok {
			return value, true
		}
	}
	return "", false
}

// selectorText returns a strategy that takes the first selector with
// non-empty trimmed text.
func selectorText(selectors ...string) fieldStrategy {
	return func(doc *goquery.Document) (string, bool) {
		for _, selector := range selectors {
			text := strings.TrimSpace(doc.Find(selector).First().Text())
			if text != "" {
				return text, true
			}
		}
		return "", false
	}
}

func metaContent(selectors ...string) fieldStrategy {
	return func(doc *goquery.Document) (string, bool) {
		for _, selector := range selectors {
			if content, exists := doc.Find(selector).First().Attr("content"); exists {
				content = strings.TrimSpace(content)
				if content != "" {
					return content, true
				}
			}
		}
		return "", false
	}
}

func jsonLDValue(keys ...string) fieldStrategy {
	return func(doc *goquery.Document) (string, bool) {
		return lookupPath(structuredData(doc), keys...)
	}
}

func (p *WBParser) ExtractName(doc *goquery.Document) (string, bool) {
	return firstMatch(doc, []fieldStrategy{
		selectorText(
			"h1.product-page__title",
			"h1.product-name",
			"h1.title",
			`[data-tag="productName"]`,
			".product-card__name",
		),
		jsonLDValue("name"),
		metaContent(`meta[property="og:title"]`),
	})
}

func (p *WBParser) ExtractBrand(doc *goquery.Document) (string, bool) {
	return firstMatch(doc, []fieldStrategy{
		selectorText(
			"div.seller-and-brand__item-name",
			"span.product-card__brand",
			`[data-brand-name]`,
		),
		p.brandFromLinks,
		jsonLDValue("brand", "name"),
		p.brandFromScripts,
	})
}

// brandFromLinks mines /brands/ hrefs; the slug carries the brand name.
func (p *WBParser) brandFromLinks(doc *goquery.Document) (string, bool) {
	var brand string

	doc.Find(`a[href*="/brands/"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		matches := p.brandURLPattern.FindStringSubmatch(href)
		if len(matches) < 2 {
			return true
		}
		if decoded := brandFromSlug(matches[1]); decoded != "" {
			brand = decoded
			return false
		}
		return true
	})

	return brand, brand != ""
}

func brandFromSlug(slug string) string {
	decoded, err := url.PathUnescape(slug)
	if err != nil {
		decoded = slug
	}
	decoded = strings.NewReplacer("-", " ", "_", " ").Replace(decoded)
	// Trailing digits are catalogue noise, not part of the name.
	decoded = regexp.MustCompile(`[\d\s]+$`).ReplaceAllString(decoded, "")
	return titleCase(strings.TrimSpace(decoded))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func (p *WBParser) brandFromScripts(doc *goquery.Document) (string, bool) {
	var brand string

	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := s.Text()
		for _, pattern := range p.brandScriptPatterns {
			if matches := pattern.FindStringSubmatch(text); len(matches) > 1 {
				brand = strings.TrimSpace(matches[1])
				return false
			}
		}
		return true
	})

	return brand, brand != ""
}

func (p *WBParser) ExtractRating(doc *goquery.Document) (float64, bool) {
	strategies := []fieldStrategy{
		classContainsText("span", "product", "rating"),
		attrValue("[data-rating]", "data-rating"),
		jsonLDValue("aggregateRating", "ratingValue"),
		metaContent(`meta[itemprop="ratingValue"]`),
	}
	for _, strategy := range strategies {
		text, ok := strategy(doc)
		if !ok {
			continue
		}
		if rating, ok := parseRatingText(text); ok {
			return rating, true
		}
	}
	return 0, false
}

func (p *WBParser) ExtractFeedbackCount(doc *goquery.Document) (int, bool) {
	strategies := []fieldStrategy{
		classContainsText("span", "product", "count"),
		attrValue("[data-count]", "data-count"),
		jsonLDValue("aggregateRating", "reviewCount"),
		metaContent(`meta[itemprop="reviewCount"]`),
		p.feedbackFromText,
	}
	for _, strategy := range strategies {
		text, ok := strategy(doc)
		if !ok {
			continue
		}
		if count, ok := parseCountText(text); ok {
			return count, true
		}
	}
	return 0, false
}

// feedbackFromText is the last-resort strategy: linguistic patterns over the
// whole rendered text.
func (p *WBParser) feedbackFromText(doc *goquery.Document) (string, bool) {
	text := normalizeText(doc.Text())
	for _, pattern := range p.feedbackPatterns {
		if matches := pattern.FindStringSubmatch(text); len(matches) > 1 {
			return matches[1], true
		}
	}
	return "", false
}

// classContainsText returns a strategy matching elements whose class names
// contain every given fragment. WB class names drift but keep these roots.
func classContainsText(tag string, fragments ...string) fieldStrategy {
	return func(doc *goquery.Document) (string, bool) {
		var found string

		doc.Find(tag).EachWithBreak(func(i int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			class = strings.ToLower(class)
			for _, fragment := range fragments {
				if !strings.Contains(class, fragment) {
					return true
				}
			}
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return true
			}
			found = text
			return false
		})

		return found, found != ""
	}
}

func attrValue(selector, attr string) fieldStrategy {
	return func(doc *goquery.Document) (string, bool) {
		value, exists := doc.Find(selector).First().Attr(attr)
		value = strings.TrimSpace(value)
		return value, exists && value != ""
	}
}

// parseRatingText parses "4,7" or "4.7" and validates the [0,5] range.
// Out-of-range candidates are discarded so the cascade can continue.
func parseRatingText(text string) (float64, bool) {
	cleaned := regexp.MustCompile(`[^\d,.]`).ReplaceAllString(strings.TrimSpace(text), "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	rating, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if rating < 0 || rating > 5 {
		return 0, false
	}
	return rating, true
}

// parseCountText parses counts like "4 529 оценок" or "1,234" into an int,
// stripping grouping separators and non-digit words.
func parseCountText(text string) (int, bool) {
	digits := regexp.MustCompile(`[^\d]`).ReplaceAllString(normalizeText(text), "")
	if digits == "" {
		return 0, false
	}

	count, err := strconv.Atoi(digits)
	if err != nil || count < 0 {
		return 0, false
	}
	return count, true
}

// normalizeText collapses the thin and non-breaking spaces WB uses as digit
// group separators into plain spaces.
func normalizeText(text string) string {
	return strings.NewReplacer(" ", " ", " ", " ", "&nbsp;", " ").Replace(text)
}
