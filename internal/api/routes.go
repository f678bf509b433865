package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/keagan/scenesplit/internal/archive"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/keagan/scenesplit/internal/session"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/batches", func(r chi.Router) {
		r.Post("/", createBatchHandler(cfg))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getBatchHandler(cfg))
			r.Delete("/", deleteBatchHandler(cfg))
			r.Get("/events", batchEventsHandler(cfg))
			r.Get("/scenes", listScenesHandler(cfg))
			r.Get("/scenes/{index}/artifact", artifactHandler(cfg, false))
			r.Get("/scenes/{index}/thumbnail", artifactHandler(cfg, true))
			r.Get("/archive", archiveHandler(cfg, false))
			r.Post("/archive", archiveHandler(cfg, true))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			Batches: cfg.Store.Len(),
		})
	}
}

func createBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.MaxUploadMB > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadMB<<20)
		}

		dir, err := os.MkdirTemp(cfg.UploadDir, "scenesplit-upload-")
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to prepare upload", "INTERNAL_ERROR")
			return
		}

		bc, err := parseUpload(r, dir, cfg.Defaults)
		if err != nil {
			os.RemoveAll(dir)
			writeFailure(w, err)
			return
		}

		b, err := cfg.Store.Create(bc)
		if err != nil {
			os.RemoveAll(dir)
			writeFailure(w, err)
			return
		}

		// uploads are only needed until the run finishes
		go func() {
			<-b.Done()
			if err := os.RemoveAll(dir); err != nil {
				cfg.Logger.Warn().Err(err).Str("batch_id", b.ID).Msg("failed to remove uploads")
			}
		}()
		cfg.Store.Start(b)

		WriteJSON(w, http.StatusAccepted, CreateBatchResponse{ID: b.ID, Videos: len(bc.Videos)})
	}
}

func lookupBatch(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*session.Batch, bool) {
	id := chi.URLParam(r, "id")
	b, ok := cfg.Store.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("batch %s not found", id), "NOT_FOUND")
		return nil, false
	}
	return b, true
}

// finishedResult writes a 409 while the batch is still running
func finishedResult(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*session.Batch, *scene.BatchResult, bool) {
	b, ok := lookupBatch(cfg, w, r)
	if !ok {
		return nil, nil, false
	}
	result := b.Result()
	if result == nil {
		WriteError(w, http.StatusConflict, "batch has not finished", "NOT_READY")
		return nil, nil, false
	}
	return b, result, true
}

func getBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := lookupBatch(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, BatchToResponse(b.Snapshot()))
	}
}

func deleteBatchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !cfg.Store.Delete(id) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("batch %s not found", id), "NOT_FOUND")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func batchEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := lookupBatch(cfg, w, r)
		if !ok {
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteError(w, http.StatusInternalServerError, "streaming unsupported", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		events, unsubscribe := b.Subscribe()
		defer unsubscribe()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, open := <-events:
				if !open {
					writeSSE(w, "done", BatchToResponse(b.Snapshot()))
					flusher.Flush()
					return
				}
				writeSSE(w, "progress", ev)
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func listScenesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, result, ok := finishedResult(cfg, w, r)
		if !ok {
			return
		}

		filter := make(map[string]bool)
		for _, s := range r.URL.Query()["source"] {
			filter[s] = true
		}

		resp := ScenesResponse{Sources: result.Sources(), Scenes: []SceneResponse{}}
		if resp.Sources == nil {
			resp.Sources = []string{}
		}
		for i, a := range result.Manifest {
			if len(filter) > 0 && !filter[a.SourceName] {
				continue
			}
			resp.Scenes = append(resp.Scenes, SceneToResponse(b.ID, i, a))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func artifactHandler(cfg ServerConfig, thumbnail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, result, ok := finishedResult(cfg, w, r)
		if !ok {
			return
		}

		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil || index < 0 || index >= len(result.Manifest) {
			WriteError(w, http.StatusNotFound, "scene not found", "NOT_FOUND")
			return
		}
		a := result.Manifest[index]

		data, name, contentType := a.ArtifactBytes, a.FileName(), a.Format.MIMEType()
		if thumbnail {
			data, name, contentType = a.ThumbnailBytes, scene.ThumbnailName(a.BaseName, a.SceneIndex), "image/jpeg"
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func archiveHandler(cfg ServerConfig, selected bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, result, ok := finishedResult(cfg, w, r)
		if !ok {
			return
		}

		var indices []int
		if selected {
			var req ArchiveRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
				return
			}
			indices = req.Indices
		} else {
			indices = make([]int, len(result.Manifest))
			for i := range indices {
				indices[i] = i
			}
		}

		// reject a bad selection before committing to a zip response
		if _, err := archive.Select(result.Manifest, indices); err != nil {
			writeFailure(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "scenes_"+b.ID[:8]+".zip"))
		w.WriteHeader(http.StatusOK)
		if err := archive.WriteTo(w, result.Manifest, indices); err != nil {
			cfg.Logger.Error().Err(err).Str("batch_id", b.ID).Msg("failed to stream archive")
		}
	}
}
