// Inventory HTTP handlers.
//
// This file exposes REST endpoints for the inventory list:
//   - GET    /inventory        (filtered, paginated, ETag support)
//   - POST   /inventory        (add)
//   - PUT    /inventory/{id}   (rename)
//   - DELETE /inventory/{id}   (remove)
//
// Reads are served from the live inventory view; writes go through the
// InventoryService, which enforces name uniqueness.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/search"
)

// InventoryItemRequest is the JSON payload for adding or renaming an item.
type InventoryItemRequest struct {
	// Item is the display name; it is trimmed and must not be blank.
	Item string `json:"item" example:"Basmati Rice"`
}

// ListInventory godoc
// @ID          listInventory
// @Summary     List inventory (filtered, paginated)
// @Description Returns the inventory items whose name or id contains q. Supports weak ETag via If-None-Match.
// @Tags        Inventory
// @Produce     json
// @Security    BearerAuth
//
// @Param       q              query   string  false "Case-insensitive search"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(500) default(50)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListResponse[domain.InventoryItem]
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Sign in required"
// @Router      /inventory [get]
func (h *Handlers) ListInventory(c *gin.Context) {
	v := h.d.InventoryView
	version := v.Version()
	if notModified(c, string(domain.CollectionInventory), version) {
		return
	}
	f := domain.VendorFilters{SearchQuery: c.Query("q")}
	ok(c, http.StatusOK, paginate(c, search.Inventory(v.Items(), f), version))
}

// AddInventoryItem godoc
// @ID          addInventoryItem
// @Summary     Add an inventory item
// @Tags        Inventory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.InventoryItemRequest  true  "Item"
// @Success     201  {object} domain.InventoryItem
// @Failure     409  {object} handlers.ErrorResponse "Item already exists"
// @Failure     422  {object} handlers.ErrorResponse "Blank name"
// @Failure     503  {object} handlers.ErrorResponse "Backend unavailable"
// @Router      /inventory [post]
func (h *Handlers) AddInventoryItem(c *gin.Context) {
	var req InventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	it, err := h.d.Inventory.Add(c.Request.Context(), req.Item)
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusCreated, it)
}

// RenameInventoryItem godoc
// @ID          renameInventoryItem
// @Summary     Rename an inventory item
// @Description Vendor records that reference the old name are not updated.
// @Tags        Inventory
// @Accept      json
// @Security    BearerAuth
// @Param       id    path  string  true  "Item id"
// @Param       body  body  handlers.InventoryItemRequest  true  "New name"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Item not found"
// @Failure     409  {object} handlers.ErrorResponse "Name already taken"
// @Failure     422  {object} handlers.ErrorResponse "Blank name"
// @Router      /inventory/{id} [put]
func (h *Handlers) RenameInventoryItem(c *gin.Context) {
	var req InventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.d.Inventory.Rename(c.Request.Context(), c.Param("id"), req.Item); err != nil {
		failErr(c, err, "")
		return
	}
	noContent(c)
}

// RemoveInventoryItem godoc
// @ID          removeInventoryItem
// @Summary     Remove an inventory item
// @Description Removing an unknown id succeeds. Vendors that list the item keep it.
// @Tags        Inventory
// @Security    BearerAuth
// @Param       id  path  string  true  "Item id"
// @Success     204  {string} string "No Content"
// @Failure     503  {object} handlers.ErrorResponse "Backend unavailable"
// @Router      /inventory/{id} [delete]
func (h *Handlers) RemoveInventoryItem(c *gin.Context) {
	if err := h.d.Inventory.Remove(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err, "")
		return
	}
	noContent(c)
}
