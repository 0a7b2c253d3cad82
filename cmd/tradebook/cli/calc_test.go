package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleLines = `[
	{"quantity":10,"unitPriceHT":100,"vatRate":20,"discountRate":10},
	{"quantity":"2","unitPriceHT":"50","vatRate":5.5}
]`

func TestCalcCommandJSON(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := CalcCommand(CalcOptions{
		Locale:     "en-US",
		Currency:   "USD",
		JSONOutput: true,
		Stdin:      strings.NewReader(sampleLines),
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, 0, code, stderr.String())

	var summary CalcSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Len(t, summary.Lines, 2)
	require.Equal(t, 1080.0, summary.Lines[0].LineTotalTTC)
	require.Equal(t, 1000.0, summary.Totals.SubTotalHT)
	require.Equal(t, 185.5, summary.Totals.TotalVAT)
	require.Equal(t, 1185.5, summary.Totals.TotalTTC)
}

func TestCalcCommandHuman(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := CalcCommand(CalcOptions{
		Locale:   "en-US",
		Currency: "USD",
		Stdin:    strings.NewReader(sampleLines),
		Stdout:   stdout,
		Stderr:   new(bytes.Buffer),
	})
	require.Equal(t, 0, code)
	out := stdout.String()
	require.Contains(t, out, "Total TTC:")
	require.Contains(t, out, "1,185.50")
	require.NotContains(t, out, "rounding adjustment")
}

func TestCalcCommandErrors(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := CalcCommand(CalcOptions{Locale: "en-US", Currency: "USD", Stdin: strings.NewReader(`{"not":"a list"}`), Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "decode lines")

	stderr.Reset()
	code = CalcCommand(CalcOptions{Locale: "en-US", Currency: "EURO", Stdin: strings.NewReader(`[]`), Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 2, code)
}
