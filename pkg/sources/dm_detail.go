package sources

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Adda-Baaj/bazar-scraper/internal/crawler"
	"github.com/PuerkitoBio/goquery"
)

// Detail page section limits.
const (
	maxDescriptionLines = 10
	minDescriptionRunes = 6
	maxPropertyLines    = 10
	maxIngredientRunes  = 500

	detailSeparator = " | "
	listSeparator   = "; "
)

var (
	dmDescriptionRe = regexp.MustCompile(`(?s)Popis produktu(.*?)(?:dm-číslo produktu|Vlastnosti|$)`)
	dmNumberRe      = regexp.MustCompile(`dm-číslo produktu:\s*(\d+)`)
	dmEANRe         = regexp.MustCompile(`EAN:\s*(\d+)`)
	dmPropertiesRe  = regexp.MustCompile(`(?s)Vlastnosti(.*?)(?:Zložky|$)`)
	dmIngredientsRe = regexp.MustCompile(`(?s)Zložky(.*?)(?:Upozornenie|Obsah|$)`)
)

// DMDetail holds the sections found on a product page.
type DMDetail struct {
	Description []string `json:"description,omitempty"`
	DMNumber    string   `json:"dm_number,omitempty"`
	EAN         string   `json:"ean,omitempty"`
	Properties  []string `json:"properties,omitempty"`
	Ingredients string   `json:"ingredients,omitempty"`
}

// Empty reports whether no section was found.
func (d DMDetail) Empty() bool {
	return len(d.Description) == 0 && d.DMNumber == "" && d.EAN == "" &&
		len(d.Properties) == 0 && d.Ingredients == ""
}

// ParseDMDetail extracts the product sections from the page's text content.
// Line structure matters, so text must not be whitespace-collapsed beforehand.
func ParseDMDetail(text string) DMDetail {
	var d DMDetail

	if m := dmDescriptionRe.FindStringSubmatch(text); m != nil {
		for _, line := range strings.Split(m[1], "\n") {
			line = crawler.CleanText(line)
			if utf8.RuneCountInString(line) < minDescriptionRunes {
				continue
			}
			d.Description = append(d.Description, line)
			if len(d.Description) == maxDescriptionLines {
				break
			}
		}
	}
	if m := dmNumberRe.FindStringSubmatch(text); m != nil {
		d.DMNumber = m[1]
	}
	if m := dmEANRe.FindStringSubmatch(text); m != nil {
		d.EAN = m[1]
	}
	if m := dmPropertiesRe.FindStringSubmatch(text); m != nil {
		for _, line := range strings.Split(m[1], "\n") {
			line = crawler.CleanText(line)
			if !strings.Contains(line, ":") {
				continue
			}
			d.Properties = append(d.Properties, line)
			if len(d.Properties) == maxPropertyLines {
				break
			}
		}
	}
	if m := dmIngredientsRe.FindStringSubmatch(text); m != nil {
		d.Ingredients = crawler.CleanText(truncateRunes(strings.TrimSpace(m[1]), maxIngredientRunes))
	}
	return d
}

// Body joins summary and the found sections with " | ".
func (d DMDetail) Body(summary string) string {
	parts := make([]string, 0, 6)
	if summary != "" {
		parts = append(parts, summary)
	}
	if len(d.Description) > 0 {
		parts = append(parts, "Popis: "+strings.Join(d.Description, listSeparator))
	}
	if d.DMNumber != "" {
		parts = append(parts, "dm-číslo: "+d.DMNumber)
	}
	if d.EAN != "" {
		parts = append(parts, "EAN: "+d.EAN)
	}
	if len(d.Properties) > 0 {
		parts = append(parts, "Vlastnosti: "+strings.Join(d.Properties, listSeparator))
	}
	if d.Ingredients != "" {
		parts = append(parts, "Zložky: "+d.Ingredients)
	}
	return strings.Join(parts, detailSeparator)
}

// PageText returns the body text of doc without script and style content.
func PageText(doc *goquery.Document) string {
	body := doc.Find("body")
	body.Find("script, style, noscript, template").Remove()
	return body.Text()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
