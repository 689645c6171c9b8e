package http

import (
	"net/http"

	"github.com/go-kit/log"

	"github.com/donmikel/mediagate/applications/mediagate"
	"github.com/donmikel/mediagate/applications/mediagate/adapters/wsdevice"
	"github.com/donmikel/mediagate/applications/mediagate/config"
)

func NewHTTPServer(conf config.Api, svc mediagate.MediaService, device *wsdevice.Device, logger log.Logger) *http.Server {
	mux := NewRouter(svc, device, int64(conf.MaxUploadBytes), logger)
	return &http.Server{
		Addr:    conf.HTTPAddr,
		Handler: mux,
	}
}
