// Live event stream.
//
// GET /events is a server-sent event stream: one "snapshot" event per
// collection on connect, then one whenever a collection's live view moves
// to a new snapshot. The stream ends with a "signout" event when the
// caller's session is signed out or expires.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vendor-ledger/internal/auth"
	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/http/middleware"
)

// KeepAliveInterval spaces comment lines on an idle event stream.
var KeepAliveInterval = 25 * time.Second

// SnapshotEvent is the data of a "snapshot" event.
type SnapshotEvent struct {
	Collection domain.Collection `json:"collection"`
	Version    uint64            `json:"version"`
	Items      any               `json:"items"`
}

// Events godoc
// @ID          events
// @Summary     Live collection snapshots (SSE)
// @Tags        Events
// @Produce     text/event-stream
// @Security    BearerAuth
// @Success     200  {object} handlers.SnapshotEvent "event: snapshot"
// @Failure     401  {object} handlers.ErrorResponse "Sign in required"
// @Router      /events [get]
func (h *Handlers) Events(c *gin.Context) {
	ctx := c.Request.Context()
	sess := auth.NewSession(h.d.Auth, middleware.TokenFrom(c))
	if err := sess.Init(ctx); err != nil {
		failAuth(c, err)
		return
	}
	if sess.Current() == nil {
		failAuth(c, auth.ErrInvalidToken)
		return
	}

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	inv, life, daily := h.d.InventoryView, h.d.LifetimeView, h.d.DailyView
	send := func(coll domain.Collection, version uint64, items any) {
		c.SSEvent("snapshot", SnapshotEvent{Collection: coll, Version: version, Items: items})
		c.Writer.Flush()
	}
	sendInventory := func() { send(domain.CollectionInventory, inv.Version(), inv.Items()) }
	sendLifetime := func() { send(domain.CollectionLifetime, life.Version(), life.Items()) }
	sendDaily := func() { send(domain.CollectionDaily, daily.Version(), daily.Items()) }

	// Grab the change channels before the first send so no snapshot
	// landing in between is missed.
	invCh, lifeCh, dailyCh := inv.Changed(), life.Changed(), daily.Changed()
	sendInventory()
	sendLifetime()
	sendDaily()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			c.SSEvent("signout", gin.H{"message": "session ended"})
			c.Writer.Flush()
			return
		case <-invCh:
			invCh = inv.Changed()
			sendInventory()
		case <-lifeCh:
			lifeCh = life.Changed()
			sendLifetime()
		case <-dailyCh:
			dailyCh = daily.Changed()
			sendDaily()
		case <-keepAlive.C:
			_, _ = c.Writer.WriteString(": keep-alive\n\n")
			c.Writer.Flush()
		}
	}
}
