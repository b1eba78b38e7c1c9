package spreadsheet

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// DisplayDateLayout is used for dates that arrive as spreadsheet serial
// numbers.
const DisplayDateLayout = "02/01/2006"

// RowIDFunc assigns an id to the record decoded from data row n (1-based).
type RowIDFunc func(c domain.Collection, n int) string

// DefaultRowID returns "<collection>_<random uuid>_<n>".
func DefaultRowID(c domain.Collection, n int) string {
	return fmt.Sprintf("%s_%s_%d", c, uuid.NewString(), n)
}

// Read decodes an .xlsx workbook. A missing sheet yields an empty list.
// Missing numeric cells decode as 0 and missing text cells as "".
func Read(r io.Reader, newID RowIDFunc) (*Workbook, error) {
	if newID == nil {
		newID = DefaultRowID
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	wb := &Workbook{
		Lifetime: []domain.LifetimeVendor{},
		Daily:    []domain.DailyVendor{},
	}
	sheets := f.GetSheetList()

	if slices.Contains(sheets, SheetLifetime) {
		err := eachRow(f, SheetLifetime, func(n int, row rowReader) {
			wb.Lifetime = append(wb.Lifetime, domain.LifetimeVendor{
				ID:           newID(domain.CollectionLifetime, n),
				Name:         row.text(colName),
				Contact:      row.text(colContact),
				Top5Items:    splitItems(row.text(colTopItems)),
				MOQ:          int(row.number(colMOQ)),
				Address:      row.text(colAddress),
				PaymentTime:  row.text(colPaymentTime),
				LastDealDate: row.date(colLastDealDate),
				DeliveryTime: row.text(colDeliveryTime),
				VendorRating: row.number(colVendorRating),
				Relationship: domain.Relationship(row.text(colRelationship)),
			})
		})
		if err != nil {
			return nil, err
		}
	}

	if slices.Contains(sheets, SheetDaily) {
		err := eachRow(f, SheetDaily, func(n int, row rowReader) {
			wb.Daily = append(wb.Daily, domain.DailyVendor{
				ID:                newID(domain.CollectionDaily, n),
				Name:              row.text(colName),
				Party:             row.text(colParty),
				Contact:           row.text(colContact),
				ItemName:          row.text(colItem),
				ItemRate:          row.number(colRate),
				ItemQuantity:      int(row.number(colQuantity)),
				ItemQuality:       row.text(colQuality),
				UnitOfMeasurement: domain.Unit(row.text(colUnit)),
				LastDealDate:      row.date(colLastDealDate),
				PaymentTime:       row.text(colPaymentTime),
				OfferTime:         row.text(colOfferTime),
				DeliveryTime:      row.text(colDeliveryTime),
				TrustLevel:        int(row.number(colTrust)),
			})
		})
		if err != nil {
			return nil, err
		}
	}
	return wb, nil
}

// rowReader reads one data row by column title.
type rowReader struct {
	f      *excelize.File
	sheet  string
	rowNum int // 1-based sheet row
	cells  []string
	cols   map[string]int
}

func (r rowReader) raw(title string) (string, int, bool) {
	i, ok := r.cols[title]
	if !ok || i >= len(r.cells) {
		return "", i, false
	}
	return r.cells[i], i, true
}

func (r rowReader) text(title string) string {
	s, _, _ := r.raw(title)
	return s
}

func (r rowReader) number(title string) float64 {
	s, _, ok := r.raw(title)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// date returns the cell text, except that a numeric cell is treated as a
// spreadsheet serial date and rendered as dd/mm/yyyy.
func (r rowReader) date(title string) string {
	s, i, ok := r.raw(title)
	if !ok || s == "" {
		return s
	}
	cell, err := excelize.CoordinatesToCellName(i+1, r.rowNum)
	if err != nil {
		return s
	}
	typ, err := r.f.GetCellType(r.sheet, cell)
	if err != nil {
		return s
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
	default:
		return s
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return s
	}
	return t.Format(DisplayDateLayout)
}

// eachRow calls fn for every non-blank data row of sheet with n counting
// data rows from 1.
func eachRow(f *excelize.File, sheet string, fn func(n int, row rowReader)) error {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil
	}
	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if _, dup := cols[h]; !dup && h != "" {
			cols[h] = i
		}
	}

	n := 0
	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		n++
		fn(n, rowReader{f: f, sheet: sheet, rowNum: i + 2, cells: cells, cols: cols})
	}
	return nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// splitItems splits a "Top Items" cell on commas, trimming entries and
// dropping empty ones.
func splitItems(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
