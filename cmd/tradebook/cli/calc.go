package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/odyssey-erp/tradebook/internal/platform/money"
	"github.com/odyssey-erp/tradebook/internal/sales/pricing"
)

// CalcOptions defines available flags for the calc command.
type CalcOptions struct {
	Locale     string
	Currency   string
	JSONOutput bool
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// CalcSummary is the JSON output of the calc command.
type CalcSummary struct {
	Lines  []CalcLine             `json:"lines"`
	Totals pricing.DocumentTotals `json:"totals"`
}

// CalcLine is one priced input line.
type CalcLine struct {
	pricing.LineItem
	pricing.LineTotals
	LineTotalTTC float64 `json:"lineTotalTTC"`
}

// CalcCommand reads a JSON array of lines and prints line and document
// totals. It returns the process exit code.
func CalcCommand(opts CalcOptions) int {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	formatter, err := money.New(opts.Locale, opts.Currency)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "calc: %v\n", err)
		return 2
	}

	var input []pricing.LineInput
	dec := json.NewDecoder(opts.Stdin)
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "calc: decode lines: %v\n", err)
		return 1
	}

	items := pricing.NormalizeAll(input)
	summary := CalcSummary{Lines: make([]CalcLine, len(items)), Totals: pricing.Aggregate(items)}
	for i, item := range items {
		totals := pricing.Calculate(item)
		summary.Lines[i] = CalcLine{LineItem: item, LineTotals: totals.Rounded(), LineTotalTTC: totals.Rounded().TTC()}
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "calc: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	renderCalcHuman(opts.Stdout, formatter, summary)
	return 0
}

func renderCalcHuman(w io.Writer, f *money.Formatter, s CalcSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "#\tQty\tUnit HT\tDiscount\tTotal HT\tVAT rate\tVAT\tTotal TTC\t")
	for i, l := range s.Lines {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			i+1,
			f.Number(l.Quantity),
			f.Format(l.UnitPriceHT),
			f.Format(l.Discount),
			f.Format(l.TotalHT),
			f.Percent(l.VATRate),
			f.Format(l.VAT),
			f.Format(l.LineTotalTTC))
	}
	_ = tw.Flush()

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Subtotal before discount: %s\n", f.Format(s.Totals.SubTotalHTBeforeDiscount))
	_, _ = fmt.Fprintf(w, "Discount:                 %s\n", f.Format(s.Totals.TotalDiscountAmount))
	_, _ = fmt.Fprintf(w, "Subtotal HT:              %s\n", f.Format(s.Totals.SubTotalHT))
	for _, b := range s.Totals.VATBreakdown {
		_, _ = fmt.Fprintf(w, "  VAT %-7s on %s: %s\n", f.Percent(b.Rate), f.Format(b.Base), f.Format(b.Amount))
	}
	if !s.Totals.Reconciles() {
		_, _ = fmt.Fprintf(w, "  VAT rounding adjustment: %s\n", f.Format(s.Totals.TotalVAT-s.Totals.BreakdownVAT()))
	}
	_, _ = fmt.Fprintf(w, "Total VAT:                %s\n", f.Format(s.Totals.TotalVAT))
	_, _ = fmt.Fprintf(w, "Total TTC:                %s\n", f.Format(s.Totals.TotalTTC))
}
