// Spreadsheet HTTP handlers.
//
// GET /export streams an .xlsx download; POST /import reads one from a
// multipart upload. Import honors Idempotency-Key: the first completed
// response is stored and a retry with the same key replays it instead of
// importing again.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vendor-ledger/internal/http/middleware"
	"github.com/tbourn/vendor-ledger/internal/repo"
	"github.com/tbourn/vendor-ledger/internal/services"
	"github.com/tbourn/vendor-ledger/internal/spreadsheet"
)

// ImportResponse reports what an import wrote and what it parsed.
type ImportResponse struct {
	Message string `json:"message" example:"Data imported successfully!"`
	services.ImportResult
}

// Export godoc
// @ID          exportWorkbook
// @Summary     Download vendors as .xlsx
// @Tags        Spreadsheet
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       scope  query  string  false  "Which vendors"  Enums(all, lifetime, daily)  default(all)
// @Success     200  {file}   file
// @Failure     400  {object} handlers.ErrorResponse "Unknown scope"
// @Failure     404  {object} handlers.ErrorResponse "No vendors to export"
// @Failure     503  {object} handlers.ErrorResponse "Backend unavailable"
// @Router      /export [get]
func (h *Handlers) Export(c *gin.Context) {
	scope, valid := spreadsheet.ParseScope(c.Query("scope"))
	if !valid {
		failErr(c, services.ErrUnknownScope, "")
		return
	}
	out, err := h.d.Spreadsheet.Export(c.Request.Context(), scope)
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, out.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, spreadsheet.ContentType, out.Data)
}

// Import godoc
// @ID          importWorkbook
// @Summary     Import vendors from .xlsx
// @Description Rows whose (name, contact) already exist are skipped. The first failed write stops the import; earlier rows stay stored.
// @Tags        Spreadsheet
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string  false  "Retry key"
// @Param       file             formData  file    true   "Workbook"
// @Success     200  {object} handlers.ImportResponse
// @Header      200  {string} Idempotency-Replayed "true when the response is a replay"
// @Failure     400  {object} handlers.ErrorResponse "Missing file"
// @Failure     422  {object} handlers.ErrorResponse "Unreadable workbook"
// @Failure     503  {object} handlers.ErrorResponse "Import stopped by a failed write"
// @Router      /import [post]
func (h *Handlers) Import(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	key, hasKey := middleware.GetIdempotencyKey(c)
	scope := middleware.IdempotencyScope(c)

	if hasKey && middleware.IsReplay(c) && h.d.DB != nil {
		rec, err := repo.GetIdempotency(ctx, h.d.DB, uid, scope, key, time.Now().UTC())
		if err == nil && rec != nil {
			c.Header("Idempotency-Replayed", "true")
			c.Data(rec.Status, "application/json; charset=utf-8", rec.Body)
			return
		}
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "file too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read upload")
		return
	}
	defer f.Close()

	res, err := h.d.Spreadsheet.Import(ctx, f)
	if err != nil {
		msg := "Failed to import data: " + err.Error()
		if res != nil && res.Written > 0 {
			msg = fmt.Sprintf("Failed to import data after %d records were written: %v", res.Written, err)
		}
		failErr(c, err, msg)
		return
	}

	resp := ImportResponse{Message: "Data imported successfully!", ImportResult: *res}
	if hasKey && h.d.DB != nil {
		if body, err := json.Marshal(resp); err == nil {
			// Best effort.
			if _, err := repo.CreateIdempotency(ctx, h.d.DB, uid, scope, key, http.StatusOK, body, h.d.IdempotencyTTL); err != nil &&
				!errors.Is(err, repo.ErrDuplicate) {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
			}
		}
	}
	ok(c, http.StatusOK, resp)
}
