// Package export renders scraped listings for copy-paste into spreadsheets and chats.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
)

// Header is the first line of every table.
const Header = "| heading | body | price | link |"

// Backslashes are doubled so an escaped quote stays unambiguous.
var fieldEscaper = strings.NewReplacer(`\`, `\\`, "|", "/", `"`, `\"`)

// EscapeField keeps a value from breaking the column layout.
func EscapeField(s string) string {
	return fieldEscaper.Replace(s)
}

// Row renders one listing as a quoted table row.
func Row(item domain.EnrichedListing) string {
	return fmt.Sprintf(`| "%s" | "%s" | "%s" | "%s" |`,
		EscapeField(item.Heading),
		EscapeField(item.Body),
		EscapeField(item.Price),
		EscapeField(item.Link),
	)
}

// WriteTable writes the header followed by one row per item.
func WriteTable(w io.Writer, items []domain.EnrichedListing) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, item := range items {
		if _, err := fmt.Fprintln(bw, Row(item)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteJSON writes items as an indented JSON array.
func WriteJSON(w io.Writer, items []domain.EnrichedListing) error {
	if items == nil {
		items = []domain.EnrichedListing{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode listings: %w", err)
	}
	return nil
}
