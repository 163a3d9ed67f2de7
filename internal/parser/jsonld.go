package parser

import (
	"encoding/json"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// structuredData returns the first parseable JSON-LD block on the page,
// or nil if none is present.
func structuredData(doc *goquery.Document) map[string]interface{} {
	var data map[string]interface{}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &parsed); err != nil {
			return true
		}
		data = parsed
		return false
	})

	return data
}

// lookupPath walks nested JSON-LD maps along the given keys and returns the
// leaf value as a string. Numeric leaves are formatted without an exponent so
// callers can reuse the same text parsing as for DOM candidates.
func lookupPath(data map[string]interface{}, keys ...string) (string, bool) {
	if data == nil {
		return "", false
	}

	var current interface{} = data
	for _, key := range keys {
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current, ok = m[key]
		if !ok {
			return "", false
		}
	}

	switch v := current.(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}
