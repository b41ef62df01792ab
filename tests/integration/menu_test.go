//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListMenu(t *testing.T) {
	resp := doGet(t, "/api/menu")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	items := decodeJSON[[]menuItemResponse](t, resp)
	if len(items) != 12 {
		t.Fatalf("expected 12 available items, got %d", len(items))
	}

	byID := make(map[string]menuItemResponse, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	dosa, ok := byID["masala-dosa"]
	if !ok {
		t.Fatal("masala-dosa missing from menu")
	}
	if dosa.UnitPrice != 10000 {
		t.Fatalf("masala-dosa price = %d paise, want 10000", dosa.UnitPrice)
	}

	parcel, ok := byID["curd-rice-parcel"]
	if !ok {
		t.Fatal("curd-rice-parcel missing from menu")
	}
	if !parcel.IsParcel {
		t.Fatal("curd-rice-parcel should be flagged as parcel")
	}

	// Unavailable items never reach the menu listing.
	if _, ok := byID["seasonal-special"]; ok {
		t.Fatal("unavailable seasonal-special should not be listed")
	}
}
