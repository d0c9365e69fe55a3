package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"camdetect/internal/logger"
	hub "camdetect/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the hub to receive frames and detections.
func ViewWebsocketHandler(hubService *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		ctx := r.Context()
		if !hubService.Register(ctx, connection) {
			connection.Close()
			return
		}
		defer hubService.Unregister(ctx, connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
