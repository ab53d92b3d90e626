// Package extract provides regex-based entity extractors for the dialogue
// engine. Every extractor is a pure function over raw text that reports
// "no match" instead of returning an error; callers treat absence as
// "stay on the current step".
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateRe     = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:st|nd|rd|th)?\s*([a-zA-Z]+)\s*(\d{4})`)
	plantRe    = regexp.MustCompile(`\b([A-Z]{2}\d{2})\b`)
	qtyItemRe  = regexp.MustCompile(`(?i)(\d+)\s+(?:x|X|×)?\s*([a-zA-Z\s.&()]+?)(?:\s+at|@|₹|\s+each|\s+price)`)
	priceRe    = regexp.MustCompile(`₹\s*([\d,]+)`)
	supplierRe = regexp.MustCompile(`(?i)(?:for|from|supplier[:\s]+)([a-zA-Z\s.&()]+?)(?:\.|,|$|\s+po)`)
	finalizeRe = regexp.MustCompile(`(?i)\b(create po|submit|finalize|done|create the po|make the po)\b`)
)

// IsFinalize reports whether text contains one of the global PO-creation
// trigger phrases. Checked on every turn regardless of the current step.
func IsFinalize(text string) bool {
	return finalizeRe.MatchString(text)
}

// DatePair extracts up to two "D Month YYYY" calendar dates from text.
// The first date is the PO date; a second date, when present, is the
// validity end, otherwise validity defaults to PO date + 30 days.
// A date that matches the shape but fails to parse falls back to today
// (first date) or today + 30 days (second date). ok is false only when
// no date-shaped text is present at all.
func DatePair(text string, today time.Time) (poDate, validity time.Time, ok bool) {
	matches := dateRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return time.Time{}, time.Time{}, false
	}

	poDate, ok2 := parseDate(matches[0])
	if !ok2 {
		poDate = today
	}

	if len(matches) > 1 {
		validity, ok2 = parseDate(matches[len(matches)-1])
		if !ok2 {
			validity = today.AddDate(0, 0, 30)
		}
	} else {
		validity = poDate.AddDate(0, 0, 30)
	}
	return poDate, validity, true
}

func parseDate(m []string) (time.Time, bool) {
	// Normalize month casing so "25 december 2025" parses too.
	month := strings.ToLower(m[2])
	month = strings.ToUpper(month[:1]) + month[1:]
	t, err := time.Parse("2 January 2006", m[1]+" "+month+" "+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PlantCode extracts an exact plant short code: two uppercase letters
// followed by two digits (e.g. IP09). Input is upper-cased first so
// "ip09" matches as well.
func PlantCode(text string) (string, bool) {
	m := plantRe.FindStringSubmatch(strings.ToUpper(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SupplierName extracts a candidate supplier name following a
// "for"/"from"/"supplier:" marker, up to a sentence delimiter.
func SupplierName(text string) (string, bool) {
	m := supplierRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", false
	}
	return name, true
}

// LineItemParts is a recognized (quantity, description, unit price)
// triple from a line-item utterance like "2 laptops at ₹50000 each".
type LineItemParts struct {
	Quantity int
	Name     string
	Price    float64
}

// LineItem extracts a quantity + item name + currency-marked price triple.
// Both the quantity/name portion and the ₹-price must be present.
func LineItem(text string) (LineItemParts, bool) {
	qm := qtyItemRe.FindStringSubmatch(text)
	price, ok := Price(text)
	if qm == nil || !ok {
		return LineItemParts{}, false
	}

	qty, err := strconv.Atoi(qm[1])
	if err != nil || qty <= 0 {
		return LineItemParts{}, false
	}
	return LineItemParts{
		Quantity: qty,
		Name:     strings.ToLower(strings.TrimSpace(qm[2])),
		Price:    price,
	}, true
}

// Price extracts a bare ₹-marked price, tolerating thousands separators.
func Price(text string) (float64, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
