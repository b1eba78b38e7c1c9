package spreadsheet

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// Write encodes the vendors into an .xlsx workbook on w. A sheet is only
// added for a non-empty list; if both are empty ErrNothingToExport is
// returned and nothing is written.
func Write(w io.Writer, lifetime []domain.LifetimeVendor, daily []domain.DailyVendor) error {
	if len(lifetime) == 0 && len(daily) == 0 {
		return ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	// NewFile starts with "Sheet1"; the first sheet we write reuses it.
	first := true
	addSheet := func(name string) error {
		if first {
			first = false
			return f.SetSheetName("Sheet1", name)
		}
		_, err := f.NewSheet(name)
		return err
	}

	if len(lifetime) > 0 {
		if err := addSheet(SheetLifetime); err != nil {
			return err
		}
		rows := make([][]any, 0, len(lifetime))
		for _, v := range lifetime {
			rows = append(rows, []any{
				v.Name,
				v.Contact,
				strings.Join(v.Top5Items, ", "),
				v.MOQ,
				v.Address,
				v.PaymentTime,
				v.LastDealDate,
				v.DeliveryTime,
				v.VendorRating,
				string(v.Relationship),
			})
		}
		if err := writeSheet(f, SheetLifetime, LifetimeHeaders, rows, bold); err != nil {
			return err
		}
	}

	if len(daily) > 0 {
		if err := addSheet(SheetDaily); err != nil {
			return err
		}
		rows := make([][]any, 0, len(daily))
		for _, v := range daily {
			rows = append(rows, []any{
				v.Name,
				v.Party,
				v.Contact,
				v.ItemName,
				v.ItemRate,
				v.ItemQuantity,
				v.ItemQuality,
				string(v.UnitOfMeasurement),
				v.LastDealDate,
				v.PaymentTime,
				v.OfferTime,
				v.DeliveryTime,
				v.TrustLevel,
			})
		}
		if err := writeSheet(f, SheetDaily, DailyHeaders, rows, bold); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any, headerStyle int) error {
	head := make([]any, len(headers))
	for i, h := range headers {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}
