package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

// keyDatePattern matches an event label followed by a date in any of the
// common source formats. Matches are collected in document order.
var keyDatePattern = regexp.MustCompile(
	`(?i)\b(filed|filing date|served|hearing(?:\s+date)?|trial(?:\s+date)?|dismissed|decided|judgment(?:\s+entered)?|deadline|due)\b[^\n:]{0,20}[:\s]\s*` +
		`([A-Z][a-z]+\.?\s+\d{1,2},?\s+\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})`,
)

// extractKeyDates returns (canonical date, label) pairs in the order the
// dates appear in the text. Unparseable candidates are dropped.
func extractKeyDates(text string) []KeyDate {
	var dates []KeyDate
	for _, m := range keyDatePattern.FindAllStringSubmatch(text, -1) {
		parsed, err := dateparse.ParseAny(m[2])
		if err != nil {
			continue
		}
		label := normalizeLabel(m[1])
		dates = append(dates, KeyDate{Date: parsed.Format("2006-01-02"), Label: label})
	}
	return dates
}

func normalizeLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.TrimSuffix(label, " date")
	label = strings.TrimSuffix(label, " entered")
	if label == "filing" {
		label = "filed"
	}
	return label
}

var reliefPattern = regexp.MustCompile(
	`(?i)(?:\b(usd|eur|gbp)\s*|([$€£]))\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)(?:\s*(million|billion))?`,
)

var currencyBySymbol = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// extractRelief parses the first monetary amount in the text. Currency
// defaults to USD when neither a code nor a known symbol is present.
func extractRelief(text string) *Money {
	m := reliefPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
	if err != nil {
		return nil
	}
	switch strings.ToLower(m[4]) {
	case "million":
		amount *= 1e6
	case "billion":
		amount *= 1e9
	}

	currency := strings.ToUpper(m[1])
	if currency == "" {
		currency = currencyBySymbol[m[2]]
	}
	if currency == "" {
		currency = "USD"
	}

	return &Money{Amount: amount, Currency: currency}
}
