package workflow

import (
	"strings"
	"testing"

	"github.com/mmdatafocus/warehouse_backend/models"
)

func scanFixture() ([]models.ReceivingLine, map[int]*models.ProductVariant) {
	v1, v2 := 101, 102
	lines := []models.ReceivingLine{
		{ID: 1, Sku: "WDG-001", ProductVariantId: &v1},
		{ID: 2, Sku: "WDG-002", ProductVariantId: &v2, GeneratedBarcode: "RCV-WDG-002-AB12CD34EF56"},
		{ID: 3, Sku: "WDG-003"}, // no catalog variant
	}
	variants := map[int]*models.ProductVariant{
		v1: {ID: v1, Sku: "WDG-001", Upc: "012345678905", Barcode: "CODE128-A"},
		v2: {ID: v2, Sku: "WDG-002"},
	}
	return lines, variants
}

func TestMatchScanToken_EachTokenType(t *testing.T) {
	lines, variants := scanFixture()

	cases := []struct {
		token      string
		wantLineId int
	}{
		{"WDG-001", 1},                  // line sku
		{"012345678905", 1},             // variant upc
		{"CODE128-A", 1},                // variant barcode
		{"RCV-WDG-002-AB12CD34EF56", 2}, // generated barcode
		{"WDG-003", 3},                  // line without variant still matches by sku
	}
	for _, tc := range cases {
		line := matchScanToken(lines, variants, tc.token)
		if line == nil {
			t.Fatalf("token %q: expected a match", tc.token)
		}
		if line.ID != tc.wantLineId {
			t.Fatalf("token %q: matched line %d, want %d", tc.token, line.ID, tc.wantLineId)
		}
	}
}

func TestMatchScanToken_MissReturnsNil(t *testing.T) {
	lines, variants := scanFixture()
	if line := matchScanToken(lines, variants, "NOT-A-TOKEN"); line != nil {
		t.Fatalf("expected nil for unknown token, got line %d", line.ID)
	}
	if line := matchScanToken(lines, variants, ""); line != nil {
		t.Fatalf("expected nil for empty token, got line %d", line.ID)
	}
}

// A token appearing as one line's sku and another line's variant barcode must
// resolve to the sku line: sku is the highest-precedence token type.
func TestMatchScanToken_SkuBeatsVariantBarcode(t *testing.T) {
	v := 201
	lines := []models.ReceivingLine{
		{ID: 1, Sku: "AAA", ProductVariantId: &v},
		{ID: 2, Sku: "SHARED"},
	}
	variants := map[int]*models.ProductVariant{
		v: {ID: v, Barcode: "SHARED"},
	}
	line := matchScanToken(lines, variants, "SHARED")
	if line == nil || line.ID != 2 {
		t.Fatalf("expected sku line 2 to win, got %+v", line)
	}
}

func TestBuildBarcodeIndex_CoversAllTokens(t *testing.T) {
	lines, variants := scanFixture()
	index := BuildBarcodeIndex(lines, variants)

	want := map[string]int{
		"WDG-001":                  1,
		"012345678905":             1,
		"CODE128-A":                1,
		"WDG-002":                  2,
		"RCV-WDG-002-AB12CD34EF56": 2,
		"WDG-003":                  3,
	}
	if len(index) != len(want) {
		t.Fatalf("index has %d entries, want %d: %v", len(index), len(want), index)
	}
	for token, lineId := range want {
		if index[token] != lineId {
			t.Fatalf("index[%q] = %d, want %d", token, index[token], lineId)
		}
	}
}

func TestBuildBarcodeIndex_CollisionKeepsHigherPrecedence(t *testing.T) {
	v := 301
	lines := []models.ReceivingLine{
		{ID: 1, Sku: "DUP"},
		{ID: 2, Sku: "OTHER", ProductVariantId: &v},
	}
	variants := map[int]*models.ProductVariant{
		v: {ID: v, Upc: "DUP"},
	}
	index := BuildBarcodeIndex(lines, variants)
	if index["DUP"] != 1 {
		t.Fatalf("collision: index[DUP] = %d, want sku line 1", index["DUP"])
	}
}

func TestGenerateLineBarcode_Format(t *testing.T) {
	first := generateLineBarcode("wdg-009")
	second := generateLineBarcode("wdg-009")

	if !strings.HasPrefix(first, "RCV-WDG-009-") {
		t.Fatalf("unexpected barcode format: %q", first)
	}
	if first == second {
		t.Fatalf("generated barcodes must be unique, got %q twice", first)
	}
}
