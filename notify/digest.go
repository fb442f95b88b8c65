// Package notify renders newly found listings as an HTML digest and mails it.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/pevans/propwatch/listing"
)

// Subject is the subject line of every digest message.
const Subject = "Najdene nepremičnine"

// UnknownYear is shown in place of a missing build year.
const UnknownYear = "N/A"

var printer = message.NewPrinter(language.Slovenian)

const digestTemplate = `<html>
<head>
<style>
body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
h1 { color: #0073e6; }
h2 { color: #333; margin-top: 20px; border-bottom: 2px solid #0073e6; padding-bottom: 10px; }
table { width: 100%; border-collapse: collapse; margin: 20px 0; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #f4f4f4; }
tr:nth-child(even) { background-color: #f9f9f9; }
a { color: #0073e6; text-decoration: none; }
</style>
</head>
<body>
<h1>Za vašo poizvedbo je prišlo do sprememb!</h1>
<h2>Najdene nepremičnine:</h2>
<table>
<tr>
<th>Link</th>
<th>Lokacija</th>
<th>Leto izgradnje</th>
<th>Velikost</th>
<th>Cena</th>
<th>Cena/m2 (*0.95)</th>
<th>Vir</th>
</tr>
{{- range .}}
<tr>
<td><a href="{{.Link}}">{{.Link}}</a></td>
<td>{{.Location}}</td>
<td>{{year .BuiltYear}}</td>
<td>{{area .Area}} m2</td>
<td>{{money .Price}} €</td>
<td>{{money .PricePerArea}} €/m2</td>
<td><a href="{{.OriginURL}}">{{.OriginURL}}</a></td>
</tr>
{{- end}}
</table>
</body>
</html>
`

var digest = template.Must(template.New("digest").Funcs(template.FuncMap{
	"year":  formatYear,
	"area":  formatArea,
	"money": formatMoney,
}).Parse(digestTemplate))

// RenderDigest renders listings as an HTML table, one row per listing, in the
// order given.
func RenderDigest(listings []listing.Listing) (string, error) {
	var buf bytes.Buffer
	if err := digest.Execute(&buf, listings); err != nil {
		return "", fmt.Errorf("failed to render digest: %w", err)
	}
	return buf.String(), nil
}

func formatYear(year *int) string {
	if year == nil {
		return UnknownYear
	}
	return fmt.Sprint(*year)
}

func formatArea(area float64) string {
	return printer.Sprint(number.Decimal(area, number.MaxFractionDigits(2)))
}

// formatMoney rounds to whole euros and groups thousands with dots.
func formatMoney(v any) string {
	switch n := v.(type) {
	case float64:
		return printer.Sprintf("%d", int64(math.Round(n)))
	case int:
		return printer.Sprintf("%d", n)
	}
	return fmt.Sprint(v)
}
