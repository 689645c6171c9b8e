package http

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/gorilla/mux"

	"github.com/donmikel/mediagate/applications/mediagate"
	"github.com/donmikel/mediagate/applications/mediagate/adapters/wsdevice"
)

// NewRouter wires the upload, capture and results endpoints. The device socket is only routed
// when device is not nil.
func NewRouter(svc mediagate.MediaService, device *wsdevice.Device, maxUploadBytes int64, logger log.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/upload", UploadHandler(svc, maxUploadBytes, logger)).Methods(http.MethodPost)

	c := r.PathPrefix("/capture").Subrouter()
	c.HandleFunc("/start", StartCaptureHandler(svc, logger)).Methods(http.MethodPost)
	c.HandleFunc("/stop", StopCaptureHandler(svc, logger)).Methods(http.MethodPost)
	c.HandleFunc("/cancel", CancelCaptureHandler(svc, logger)).Methods(http.MethodPost)
	c.HandleFunc("/state", CaptureStateHandler(svc, logger)).Methods(http.MethodGet)
	if device != nil {
		c.HandleFunc("/device", DeviceHandler(device, logger)).Methods(http.MethodGet)
	}

	r.HandleFunc("/results", ResultsHandler(svc, logger)).Methods(http.MethodGet)
	r.HandleFunc("/results", ClearResultsHandler(svc, logger)).Methods(http.MethodDelete)
	r.HandleFunc("/results/{source}", ResultContentHandler(svc, logger)).Methods(http.MethodGet)

	return r
}
