package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Adda-Baaj/bazar-scraper/internal/domain"
)

func TestEscapeField(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{in: `a|b"c`, want: `a/b\"c`},
		{in: `C:\dir\`, want: `C:\\dir\\`},
		{in: `ends with \"`, want: `ends with \\\"`},
		{in: "plain", want: "plain"},
	}
	for _, tc := range cases {
		if got := EscapeField(tc.in); got != tc.want {
			t.Fatalf("EscapeField(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWriteTable(t *testing.T) {
	items := []domain.EnrichedListing{
		domain.ListingSummary{Heading: "Bicykel | 26\"", Price: "120 €", Link: "https://x/1", Summary: "s"}.WithBody("Popis"),
		domain.ListingSummary{Heading: "Stôl", Price: "", Link: "https://x/2", Summary: "drevo"}.Fallback(),
	}

	var buf bytes.Buffer
	if err := WriteTable(&buf, items); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != Header {
		t.Fatalf("header = %q", lines[0])
	}
	want := `| "Bicykel / 26\"" | "Popis" | "120 €" | "https://x/1" |`
	if lines[1] != want {
		t.Fatalf("row 1 = %q, want %q", lines[1], want)
	}
	if lines[2] != `| "Stôl" | "drevo" | "" | "https://x/2" |` {
		t.Fatalf("row 2 = %q", lines[2])
	}
	for i, line := range lines[1:] {
		// 5 separators per row, none inside fields
		if n := strings.Count(line, "|"); n != 5 {
			t.Fatalf("row %d has %d pipes", i+1, n)
		}
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var out []domain.EnrichedListing
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty array, got %s", buf.String())
	}
}
