package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

func seqID(c domain.Collection, n int) string { return fmt.Sprintf("%s_%d", c, n) }

func TestWrite_EmptyIsError(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil, []domain.DailyVendor{}); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("want ErrNothingToExport, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written, got %d bytes", buf.Len())
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	lifetime := []domain.LifetimeVendor{
		{
			Name: "Ali Traders", Contact: "0300-1234567",
			Top5Items: []string{"Wheat", "Rice"}, MOQ: 50, Address: "Main Bazaar",
			PaymentTime: "30", LastDealDate: "2024-03-01", DeliveryTime: "2 days",
			VendorRating: 4.5, Relationship: domain.RelationshipGood,
		},
		{Name: "Bano", Contact: "0311", Top5Items: []string{}, Relationship: domain.RelationshipExcellent},
	}
	daily := []domain.DailyVendor{
		{
			Name: "Karim", Party: "KB & Sons", Contact: "0321", ItemName: "Sugar",
			ItemRate: 120.5, ItemQuantity: 10, ItemQuality: "A", UnitOfMeasurement: domain.UnitKg,
			LastDealDate: "2024-04-02", PaymentTime: "0", OfferTime: "morning",
			DeliveryTime: "same day", TrustLevel: 4,
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, lifetime, daily); err != nil {
		t.Fatalf("Write: %v", err)
	}
	wb, err := Read(bytes.NewReader(buf.Bytes()), seqID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(wb.Lifetime) != 2 || len(wb.Daily) != 1 {
		t.Fatalf("counts = %d/%d", len(wb.Lifetime), len(wb.Daily))
	}
	for i := range lifetime {
		want := lifetime[i]
		want.ID = seqID(domain.CollectionLifetime, i+1)
		if !reflect.DeepEqual(wb.Lifetime[i], want) {
			t.Fatalf("lifetime[%d]:\n got %+v\nwant %+v", i, wb.Lifetime[i], want)
		}
	}
	want := daily[0]
	want.ID = "daily_1"
	if !reflect.DeepEqual(wb.Daily[0], want) {
		t.Fatalf("daily:\n got %+v\nwant %+v", wb.Daily[0], want)
	}
}

func TestWrite_SheetLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil, []domain.DailyVendor{{Name: "X", ItemName: "Y", ItemRate: 1}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{SheetDaily}) {
		t.Fatalf("sheets = %v", got)
	}
	rows, err := f.GetRows(SheetDaily)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if !reflect.DeepEqual(rows[0], DailyHeaders) {
		t.Fatalf("header = %v", rows[0])
	}
}

// buildWorkbook writes rows verbatim to the named sheets.
func buildWorkbook(t *testing.T, sheets map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatal(err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(name, cell, &rows[i]); err != nil {
				t.Fatal(err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestRead_SerialDateAndLooseColumns(t *testing.T) {
	buf := buildWorkbook(t, map[string][][]any{
		SheetLifetime: {
			{"Contact", "Name", "Last Deal Date", "Top Items", "MOQ", "Notes"},
			{"0300", "Ali", 45352, " Wheat , ,Rice,", "lots", "ignored"},
			{},
			{"0311", "Bano", "yesterday", "", 7.9, ""},
		},
	})
	wb, err := Read(buf, seqID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(wb.Daily) != 0 {
		t.Fatalf("missing daily sheet should decode as empty, got %d", len(wb.Daily))
	}
	if len(wb.Lifetime) != 2 {
		t.Fatalf("blank row should be skipped, got %d rows", len(wb.Lifetime))
	}
	a, b := wb.Lifetime[0], wb.Lifetime[1]
	if a.ID != "lifetime_1" || b.ID != "lifetime_2" {
		t.Fatalf("ids = %q %q", a.ID, b.ID)
	}
	if a.LastDealDate != "01/03/2024" {
		t.Fatalf("serial date = %q", a.LastDealDate)
	}
	if !reflect.DeepEqual(a.Top5Items, []string{"Wheat", "Rice"}) {
		t.Fatalf("top items = %#v", a.Top5Items)
	}
	if a.MOQ != 0 || a.VendorRating != 0 || a.Address != "" {
		t.Fatalf("unparseable/missing fields should be zero: %+v", a)
	}
	if b.LastDealDate != "yesterday" || b.MOQ != 7 {
		t.Fatalf("row 2 = %+v", b)
	}
	if len(b.Top5Items) != 0 || b.Top5Items == nil {
		t.Fatalf("empty top items should be an empty list, got %#v", b.Top5Items)
	}
}

func TestRead_NotAWorkbook(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("plain text")), nil); err == nil {
		t.Fatal("expected error for non-xlsx input")
	}
}

func TestDefaultRowID(t *testing.T) {
	a, b := DefaultRowID(domain.CollectionDaily, 3), DefaultRowID(domain.CollectionDaily, 3)
	if a == b {
		t.Fatalf("ids should be random, got %q twice", a)
	}
	if len(a) < len("daily__3") || a[:6] != "daily_" || a[len(a)-2:] != "_3" {
		t.Fatalf("unexpected id %q", a)
	}
}

func TestParseScope(t *testing.T) {
	cases := map[string]struct {
		want Scope
		ok   bool
		file string
	}{
		"":         {ScopeAll, true, "all_vendors.xlsx"},
		"all":      {ScopeAll, true, "all_vendors.xlsx"},
		"lifetime": {ScopeLifetime, true, "lifetime_vendors.xlsx"},
		"daily":    {ScopeDaily, true, "daily_vendors.xlsx"},
		"weekly":   {"", false, ""},
	}
	for in, tc := range cases {
		got, ok := ParseScope(in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%q: got %q,%v", in, got, ok)
		}
		if ok && got.Filename() != tc.file {
			t.Fatalf("%q: filename %q", in, got.Filename())
		}
	}
}
