package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"

	"github.com/donmikel/mediagate/applications/mediagate"
	"github.com/donmikel/mediagate/applications/mediagate/domain"
)

type assetView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"size_human"`
	Checksum  string    `json:"checksum"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

type resultsView struct {
	Uploaded *assetView `json:"uploaded"`
	Recorded *assetView `json:"recorded"`
}

type stateView struct {
	State domain.CaptureState `json:"state"`
}

func newAssetView(a *domain.MediaAsset) *assetView {
	if a == nil {
		return nil
	}
	return &assetView{
		ID:        a.ID,
		Name:      a.Name,
		MimeType:  a.MimeType,
		Size:      a.Size,
		SizeHuman: humanize.IBytes(uint64(a.Size)),
		Checksum:  a.Checksum,
		Source:    string(a.Source),
		CreatedAt: a.CreatedAt,
	}
}

// UploadHandler reads the multipart field "file". Files larger than maxUploadBytes are rejected
// as too large without being buffered or handed to validation.
func UploadHandler(svc mediagate.MediaService, maxUploadBytes int64, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var candidate *domain.FileCandidate

		file, header, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			level.Error(logger).Log("msg", "FormFile error",
				"err", err,
			)
			writeErr(w, err, http.StatusBadRequest, logger)
			return
		default:
			defer file.Close()

			candidate = &domain.FileCandidate{
				Name:     header.Filename,
				MimeType: header.Header.Get("Content-Type"),
				Size:     header.Size,
			}

			if maxUploadBytes > 0 && header.Size > maxUploadBytes {
				level.Info(logger).Log("msg", "upload exceeds limit",
					"name", header.Filename,
					"size", humanize.IBytes(uint64(header.Size)),
				)
				writeErr(w, &domain.ValidationError{
					Reason:  domain.ReasonTooLarge,
					Message: fmt.Sprintf("file size is too large, maximum is %s", humanize.IBytes(uint64(maxUploadBytes))),
				}, http.StatusUnprocessableEntity, logger)
				return
			}

			candidate.Body, err = io.ReadAll(file)
			if err != nil {
				level.Error(logger).Log("msg", "error reading upload", "err", err)
				writeErr(w, err, http.StatusBadRequest, logger)
				return
			}
		}

		asset, err := svc.Upload(r.Context(), candidate)
		if err != nil {
			writeErr(w, err, statusFor(err), logger)
			return
		}

		writeJSON(w, http.StatusCreated, newAssetView(&asset), logger)
	}
}

func StartCaptureHandler(svc mediagate.MediaService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var wantsVideo bool
		if v := r.URL.Query().Get("video"); v != "" {
			var err error
			wantsVideo, err = strconv.ParseBool(v)
			if err != nil {
				writeErr(w, fmt.Errorf("bad video flag %q", v), http.StatusBadRequest, logger)
				return
			}
		}

		if err := svc.StartCapture(r.Context(), wantsVideo); err != nil {
			level.Info(logger).Log("msg", "StartCapture error", "err", err)
			writeErr(w, err, statusFor(err), logger)
			return
		}

		writeJSON(w, http.StatusOK, stateView{State: svc.CaptureState(r.Context())}, logger)
	}
}

func StopCaptureHandler(svc mediagate.MediaService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := svc.StopCapture(r.Context())
		if err != nil {
			writeErr(w, err, statusFor(err), logger)
			return
		}

		writeJSON(w, http.StatusCreated, newAssetView(&asset), logger)
	}
}

func CancelCaptureHandler(svc mediagate.MediaService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CancelCapture(r.Context()); err != nil {
			level.Error(logger).Log("msg", "CancelCapture error", "err", err)
			writeErr(w, err, http.StatusInternalServerError, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func CaptureStateHandler(svc mediagate.MediaService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stateView{State: svc.CaptureState(r.Context())}, logger)
	}
}

func ResultsHandler(svc mediagate.MediaService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := svc.Results(r.Context())
		if err != nil {
			writeErr(w, err, http.StatusInternalServerError, logger)
			return
		}

		writeJSON(w, http.StatusOK, resultsView{
			Uploaded: newAssetView(results.Uploaded),
			Recorded: newAssetView(results.Recorded),
		}, logger)
	}
}

func ResultContentHandler(svc mediagate.MediaService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := svc.Results(r.Context())
		if err != nil {
			writeErr(w, err, http.StatusInternalServerError, logger)
			return
		}

		var asset *domain.MediaAsset
		switch domain.Source(mux.Vars(r)["source"]) {
		case domain.SourceUpload:
			asset = results.Uploaded
		case domain.SourceRecording:
			asset = results.Recorded
		default:
			writeErr(w, fmt.Errorf("unknown source %q", mux.Vars(r)["source"]), http.StatusBadRequest, logger)
			return
		}

		if asset == nil {
			writeErr(w, domain.ErrNoAsset, http.StatusNotFound, logger)
			return
		}

		w.Header().Set("Content-Type", asset.MimeType)
		w.Header().Set("Content-Length", strconv.FormatInt(asset.Size, 10))
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", asset.Name))

		if _, err = w.Write(asset.Bytes()); err != nil {
			level.Error(logger).Log("msg", "error writing media", "err", err)
		}
	}
}

func ClearResultsHandler(svc mediagate.MediaService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearResults(r.Context()); err != nil {
			level.Error(logger).Log("msg", "ClearResults error", "err", err)
			writeErr(w, err, http.StatusInternalServerError, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func statusFor(err error) int {
	var validationErr *domain.ValidationError
	var captureErr *domain.CaptureError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &captureErr):
		switch captureErr.Reason {
		case domain.ReasonPermissionDenied:
			return http.StatusForbidden
		case domain.ReasonCancelled:
			return http.StatusConflict
		default:
			return http.StatusServiceUnavailable
		}
	case errors.Is(err, domain.ErrCaptureBusy), errors.Is(err, domain.ErrNotRecording):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger log.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		level.Error(logger).Log("msg", "can't write response", "err", err)
	}
}

func writeErr(w http.ResponseWriter, err error, status int, logger log.Logger) {
	w.WriteHeader(status)
	_, err = w.Write([]byte(err.Error()))
	if err != nil {
		level.Error(logger).Log("msg", "can't write response", "err", err)
	}
}
