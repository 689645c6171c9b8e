package http

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"

	"github.com/donmikel/mediagate/applications/mediagate/adapters/wsdevice"
)

var deviceUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// DeviceHandler upgrades the request and lends the socket to the capture device until the
// capture ends.
func DeviceHandler(device *wsdevice.Device, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := deviceUpgrader.Upgrade(w, r, nil)
		if err != nil {
			level.Error(logger).Log("msg", "websocket upgrade failed", "err", err)
			return
		}

		level.Info(logger).Log("msg", "browser attached", "remote", conn.RemoteAddr())

		if err = device.Attach(r.Context(), conn); err != nil {
			level.Error(logger).Log("msg", "capture device detached with error", "err", err)
			return
		}

		level.Info(logger).Log("msg", "browser detached", "remote", conn.RemoteAddr())
	}
}
