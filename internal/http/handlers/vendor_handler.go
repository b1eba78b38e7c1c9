// Vendor HTTP handlers.
//
// Lifetime and daily vendors share the same shape of endpoints:
//   - GET    /vendors/{kind}        (filtered, paginated, ETag support)
//   - POST   /vendors/{kind}        (save: update when the id exists, else add)
//   - DELETE /vendors/{kind}/{id}
//
// plus POST /vendors/lifetime/top-items, which applies one add or remove to a
// top item list the way the vendor form does, and GET /stats.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/search"
	"github.com/tbourn/vendor-ledger/internal/services"
)

// TopItemsRequest edits a lifetime vendor's top items. Exactly one of
// Candidate (add) or Remove should be set.
type TopItemsRequest struct {
	Items     []string `json:"items"`
	Candidate string   `json:"candidate,omitempty" example:"Wheat"`
	Remove    string   `json:"remove,omitempty"`
}

// TopItemsResponse is the edited list.
type TopItemsResponse struct {
	Items []string `json:"items"`
}

// ListLifetimeVendors godoc
// @ID          listLifetimeVendors
// @Summary     List lifetime vendors (filtered, paginated)
// @Tags        Vendors
// @Produce     json
// @Security    BearerAuth
// @Param       q            query  string  false "Search name, contact, address, top items"
// @Param       rating       query  number  false "Minimum vendor rating"
// @Param       paymentTime  query  string  false "Exact payment time in days"
// @Param       page         query  int     false "Page number"
// @Param       page_size    query  int     false "Items per page"
// @Success     200  {object} handlers.ListResponse[domain.LifetimeVendor]
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad filter"
// @Router      /vendors/lifetime [get]
func (h *Handlers) ListLifetimeVendors(c *gin.Context) {
	f, err := filtersFrom(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	v := h.d.LifetimeView
	version := v.Version()
	if notModified(c, string(domain.CollectionLifetime), version) {
		return
	}
	ok(c, http.StatusOK, paginate(c, search.Lifetime(v.Items(), f), version))
}

// ListDailyVendors godoc
// @ID          listDailyVendors
// @Summary     List daily vendors (filtered, paginated)
// @Tags        Vendors
// @Produce     json
// @Security    BearerAuth
// @Param       q            query  string  false "Search name, item, contact"
// @Param       unit         query  string  false "Unit of measurement"  Enums(Kg, Litre, Piece, Packet, Bag)
// @Param       paymentDate  query  string  false "Last deal date (YYYY-MM-DD)"
// @Param       page         query  int     false "Page number"
// @Param       page_size    query  int     false "Items per page"
// @Success     200  {object} handlers.ListResponse[domain.DailyVendor]
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad filter"
// @Router      /vendors/daily [get]
func (h *Handlers) ListDailyVendors(c *gin.Context) {
	f, err := filtersFrom(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	v := h.d.DailyView
	version := v.Version()
	if notModified(c, string(domain.CollectionDaily), version) {
		return
	}
	ok(c, http.StatusOK, paginate(c, search.Daily(v.Items(), f), version))
}

// SaveLifetimeVendor godoc
// @ID          saveLifetimeVendor
// @Summary     Save a lifetime vendor
// @Description Updates the vendor when its id exists, otherwise adds it with a fresh id. Every top item must be in inventory.
// @Tags        Vendors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  domain.LifetimeVendor  true  "Vendor"
// @Success     200  {object} services.SaveResult "Updated"
// @Success     201  {object} services.SaveResult "Added"
// @Failure     422  {object} handlers.ErrorResponse "Validation failed"
// @Failure     503  {object} handlers.ErrorResponse "Backend unavailable"
// @Router      /vendors/lifetime [post]
func (h *Handlers) SaveLifetimeVendor(c *gin.Context) {
	var v domain.LifetimeVendor
	if err := c.ShouldBindJSON(&v); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.d.Vendors.SaveLifetime(c.Request.Context(), v)
	h.saved(c, res, err)
}

// SaveDailyVendor godoc
// @ID          saveDailyVendor
// @Summary     Save a daily vendor
// @Description Updates the vendor when its id exists, otherwise adds it with a fresh id. The item must be in inventory.
// @Tags        Vendors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  domain.DailyVendor  true  "Vendor"
// @Success     200  {object} services.SaveResult "Updated"
// @Success     201  {object} services.SaveResult "Added"
// @Failure     422  {object} handlers.ErrorResponse "Validation failed"
// @Failure     503  {object} handlers.ErrorResponse "Backend unavailable"
// @Router      /vendors/daily [post]
func (h *Handlers) SaveDailyVendor(c *gin.Context) {
	var v domain.DailyVendor
	if err := c.ShouldBindJSON(&v); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.d.Vendors.SaveDaily(c.Request.Context(), v)
	h.saved(c, res, err)
}

func (h *Handlers) saved(c *gin.Context, res *services.SaveResult, err error) {
	if err != nil {
		failErr(c, err, services.FailureMessage(err))
		return
	}
	status := http.StatusOK
	if res.Action == services.ActionAdded {
		status = http.StatusCreated
	}
	ok(c, status, res)
}

// DeleteLifetimeVendor godoc
// @ID          deleteLifetimeVendor
// @Summary     Delete a lifetime vendor
// @Tags        Vendors
// @Security    BearerAuth
// @Param       id  path  string  true  "Vendor id"
// @Success     204  {string} string "No Content"
// @Failure     503  {object} handlers.ErrorResponse "Backend unavailable"
// @Router      /vendors/lifetime/{id} [delete]
func (h *Handlers) DeleteLifetimeVendor(c *gin.Context) {
	h.deleteVendor(c, domain.CollectionLifetime)
}

// DeleteDailyVendor godoc
// @ID          deleteDailyVendor
// @Summary     Delete a daily vendor
// @Tags        Vendors
// @Security    BearerAuth
// @Param       id  path  string  true  "Vendor id"
// @Success     204  {string} string "No Content"
// @Failure     503  {object} handlers.ErrorResponse "Backend unavailable"
// @Router      /vendors/daily/{id} [delete]
func (h *Handlers) DeleteDailyVendor(c *gin.Context) {
	h.deleteVendor(c, domain.CollectionDaily)
}

func (h *Handlers) deleteVendor(c *gin.Context, coll domain.Collection) {
	if err := h.d.Vendors.Delete(c.Request.Context(), coll, c.Param("id")); err != nil {
		failErr(c, err, "")
		return
	}
	noContent(c)
}

// EditTopItems godoc
// @ID          editTopItems
// @Summary     Add or remove one top item
// @Description Adds candidate (must be in inventory, no repeats, at most five kept) or removes an item from the given list.
// @Tags        Vendors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.TopItemsRequest  true  "Current list and edit"
// @Success     200  {object} handlers.TopItemsResponse
// @Failure     422  {object} handlers.ErrorResponse "Not in inventory"
// @Router      /vendors/lifetime/top-items [post]
func (h *Handlers) EditTopItems(c *gin.Context) {
	var req TopItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	items := req.Items
	if items == nil {
		items = []string{}
	}
	if strings.TrimSpace(req.Remove) != "" {
		ok(c, http.StatusOK, TopItemsResponse{Items: domain.RemoveTopItem(items, req.Remove)})
		return
	}
	out, err := domain.AddTopItem(items, req.Candidate, domain.NewNameSet(h.d.InventoryView.Items()))
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, TopItemsResponse{Items: out})
}

// Stats godoc
// @ID          stats
// @Summary     Dashboard counters
// @Description Counts the lists after the same filters the list endpoints take, and averages the lifetime ratings.
// @Tags        Vendors
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} search.Summary
// @Failure     400  {object} handlers.ErrorResponse "Bad filter"
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	f, err := filtersFrom(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	ok(c, http.StatusOK, search.Summarize(
		search.Inventory(h.d.InventoryView.Items(), f),
		search.Lifetime(h.d.LifetimeView.Items(), f),
		search.Daily(h.d.DailyView.Items(), f),
	))
}
