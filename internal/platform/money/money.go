// Package money renders amounts for people, in a given locale and currency.
package money

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

// Formatter prints two-decimal amounts with locale grouping and the currency
// symbol.
type Formatter struct {
	tag     language.Tag
	unit    currency.Unit
	printer *message.Printer
	symbol  string
}

// New builds a formatter for a BCP 47 locale such as fr-FR and an ISO 4217
// currency code such as EUR.
func New(locale, code string) (*Formatter, error) {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return nil, fmt.Errorf("money: locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("money: currency %q: %w", code, err)
	}
	printer := message.NewPrinter(tag)
	return &Formatter{
		tag:     tag,
		unit:    unit,
		printer: printer,
		symbol:  printer.Sprint(currency.Symbol(unit)),
	}, nil
}

// Format rounds v half away from zero and renders it, e.g. "€1,179.00".
func (f *Formatter) Format(v float64) string {
	v = shared.Round2(v)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + f.symbol + f.printer.Sprintf("%.2f", v)
}

// Number renders v with locale grouping and no symbol.
func (f *Formatter) Number(v float64) string {
	return f.printer.Sprintf("%.2f", shared.Round2(v))
}

// Percent renders a rate such as 5.5 as "5.5%".
func (f *Formatter) Percent(rate float64) string {
	return f.printer.Sprintf("%v%%", rate)
}

// Currency returns the ISO code in use.
func (f *Formatter) Currency() string {
	return f.unit.String()
}

// Locale returns the language tag in use.
func (f *Formatter) Locale() string {
	return f.tag.String()
}
