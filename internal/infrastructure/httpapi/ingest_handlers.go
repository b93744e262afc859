package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BRAVO68WEB/echohook/internal/domain"
	"github.com/BRAVO68WEB/echohook/internal/usecase"
)

type captureResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

// handleIngest captures any call to /i/{id} or below it. The body is read up
// to one byte past the limit so oversize payloads are detected without
// buffering them whole.
func (d *Deps) handleIngest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := d.Cfg.MaxBodySize
	if limit > 0 && r.ContentLength > int64(limit) {
		if _, err := usecase.ParseSessionID(id); err != nil {
			d.reject(w, err)
			return
		}
		d.reject(w, &domain.PayloadTooLargeError{Size: int(r.ContentLength), Limit: limit})
		return
	}
	var reader io.Reader = r.Body
	if limit > 0 {
		reader = io.LimitReader(r.Body, int64(limit)+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		d.Logger.Warn().Err(err).Str("session_id", id).Msg("read ingestion body")
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	req, err := d.Capture.Ingest(r.Context(), id, usecase.Inbound{
		Method:     r.Method,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Header:     r.Header,
		Host:       r.Host,
		Body:       body,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		d.reject(w, err)
		return
	}
	d.Metrics.CapturesTotal.Inc()
	writeJSON(w, http.StatusOK, captureResponse{Status: "captured", RequestID: req.ID})
}

func (d *Deps) reject(w http.ResponseWriter, err error) {
	_, code := classify(err)
	d.Metrics.CapturesRejectedTotal.WithLabelValues(code).Inc()
	writeDomainError(w, d.Logger, err)
}
