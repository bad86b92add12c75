package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/appforge/forge/internal/hub"
	"github.com/appforge/forge/internal/jobs"
	"github.com/appforge/forge/internal/logger"
	"github.com/appforge/forge/internal/types"
)

// RequireUpgrade rejects plain HTTP requests on WebSocket routes
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// JobStream streams status updates for one job. The current snapshot is
// replayed on connect, so a client that reconnects after missing pushes is
// immediately consistent with the store.
func JobStream(store jobs.Store, statusHub *hub.StatusHub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		jobID := conn.Params("id")
		sub := statusHub.Subscribe(jobID)
		defer sub.Cancel()

		if job, err := store.Get(context.Background(), jobID); err == nil {
			if err := conn.WriteJSON(types.StreamMessage{Type: types.MessageStatusUpdate, Data: job.Snapshot()}); err != nil {
				return
			}
		}
		stream(conn, sub)
	})
}

// ListStream streams aggregate job-list events to a subscriber
func ListStream(statusHub *hub.StatusHub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		sub := statusHub.SubscribeAll()
		defer sub.Cancel()
		stream(conn, sub)
	})
}

// stream pumps hub messages to the connection until either side goes away
func stream(conn *websocket.Conn, sub *hub.Subscription) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.Updates():
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debugf("websocket write failed, dropping subscriber: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
