// Package services – SpreadsheetService
//
// SpreadsheetService exports the stored vendors to an .xlsx workbook and
// imports vendors from one. Import skips any row whose (name, contact) pair
// already exists in the same collection, and it does not check rows against
// the inventory. Rows are written one at a time: the first failed write
// stops the import and rows written before it stay stored.
package services

import (
	"bytes"
	"context"
	"io"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/observability"
	"github.com/tbourn/vendor-ledger/internal/spreadsheet"
)

// Export is a rendered workbook ready for download.
type Export struct {
	Filename string
	Data     []byte
}

// ImportResult lists every parsed record, whether or not it was written.
type ImportResult struct {
	Lifetime []domain.LifetimeVendor `json:"lifetime"`
	Daily    []domain.DailyVendor    `json:"daily"`
	Written  int                     `json:"written"`
	Skipped  int                     `json:"skipped"`
}

// SpreadsheetService moves vendors between the store and workbooks.
type SpreadsheetService struct {
	Store Store
	Log   zerolog.Logger
	// RowID assigns ids to imported rows; nil uses spreadsheet.DefaultRowID.
	RowID spreadsheet.RowIDFunc
}

// NewSpreadsheetService constructs a SpreadsheetService.
func NewSpreadsheetService(s Store, log zerolog.Logger) *SpreadsheetService {
	return &SpreadsheetService{Store: s, Log: log, RowID: spreadsheet.DefaultRowID}
}

// Export renders the vendors selected by scope.
func (s *SpreadsheetService) Export(ctx context.Context, scope spreadsheet.Scope) (*Export, error) {
	tr := otel.Tracer("services/SpreadsheetService")
	ctx, span := tr.Start(ctx, "Export", trace.WithAttributes(attribute.String("export.scope", string(scope))))
	defer span.End()

	var (
		lifetime []domain.LifetimeVendor
		daily    []domain.DailyVendor
		err      error
	)
	switch scope {
	case spreadsheet.ScopeAll, spreadsheet.ScopeLifetime, spreadsheet.ScopeDaily:
	default:
		return nil, ErrUnknownScope
	}
	if scope != spreadsheet.ScopeDaily {
		if lifetime, err = loadAll[domain.LifetimeVendor](ctx, s.Store, domain.CollectionLifetime); err != nil {
			return nil, observability.Fail(span, storeErr(err))
		}
	}
	if scope != spreadsheet.ScopeLifetime {
		if daily, err = loadAll[domain.DailyVendor](ctx, s.Store, domain.CollectionDaily); err != nil {
			return nil, observability.Fail(span, storeErr(err))
		}
	}

	var buf bytes.Buffer
	if err := spreadsheet.Write(&buf, lifetime, daily); err != nil {
		return nil, observability.Fail(span, err)
	}
	span.SetAttributes(attribute.Int("export.lifetime", len(lifetime)), attribute.Int("export.daily", len(daily)))
	return &Export{Filename: scope.Filename(), Data: buf.Bytes()}, nil
}

// Import reads a workbook from r and stores its new vendors. On a write
// failure the partial result is returned together with the error.
func (s *SpreadsheetService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	tr := otel.Tracer("services/SpreadsheetService")
	ctx, span := tr.Start(ctx, "Import")
	defer span.End()

	wb, err := spreadsheet.Read(r, s.RowID)
	if err != nil {
		s.Log.Warn().Err(err).Msg("import: unreadable workbook")
		observability.Fail(span, err)
		return nil, &ValidationError{Field: "file", Msg: "Failed to import data. Please check the file format."}
	}
	res := &ImportResult{Lifetime: wb.Lifetime, Daily: wb.Daily}
	defer func() {
		span.SetAttributes(attribute.Int("import.written", res.Written), attribute.Int("import.skipped", res.Skipped))
	}()

	for i := range wb.Lifetime {
		v := &wb.Lifetime[i]
		if err := s.importOne(ctx, v, v.Name, v.Contact, res); err != nil {
			return res, observability.Fail(span, err)
		}
	}
	for i := range wb.Daily {
		v := &wb.Daily[i]
		if err := s.importOne(ctx, v, v.Name, v.Contact, res); err != nil {
			return res, observability.Fail(span, err)
		}
	}
	s.Log.Info().Int("written", res.Written).Int("skipped", res.Skipped).Msg("import finished")
	return res, nil
}

func (s *SpreadsheetService) importOne(ctx context.Context, rec domain.Record, name, contact string, res *ImportResult) error {
	c := rec.Collection()
	dup, err := s.Store.ExistsByNameContact(ctx, c, name, contact)
	if err != nil {
		importRows.WithLabelValues(string(c), "failed").Inc()
		return storeErr(err)
	}
	if dup {
		importRows.WithLabelValues(string(c), "skipped").Inc()
		res.Skipped++
		return nil
	}
	if _, err := s.Store.Create(ctx, rec); err != nil {
		importRows.WithLabelValues(string(c), "failed").Inc()
		return storeErr(err)
	}
	importRows.WithLabelValues(string(c), "written").Inc()
	res.Written++
	return nil
}
