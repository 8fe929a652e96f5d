// Package handlers exposes the HTTP and WebSocket surface: an ingest
// endpoint that hands an incoming request body to a segmenter, media
// endpoints that serve the resulting init segment/media
// segments/playlist, and a WebSocket that pushes keyframe telemetry.
package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"hls-fragmenter/database"
	"hls-fragmenter/models"
	"hls-fragmenter/registry"
	"hls-fragmenter/segmenter"
	"hls-fragmenter/source"
)

// IngestConfig carries the per-stream settings needed to start
// segmenting a newly ingested stream.
type IngestConfig struct {
	SegmentDuration time.Duration
	MaxSegments     int
	KeyframeDebug   bool
}

// IngestHandlers wires incoming stream uploads into the registry. db
// may be nil, in which case segment-index/discontinuity continuity
// across a hot restart is not attempted.
type IngestHandlers struct {
	manager *registry.Manager
	store   segmenter.BlobStore
	db      *database.DB
	cfg     IngestConfig
}

// NewIngestHandlers constructs the ingest surface. store is shared
// across every stream segmented by this process.
func NewIngestHandlers(manager *registry.Manager, store segmenter.BlobStore, db *database.DB, cfg IngestConfig) *IngestHandlers {
	return &IngestHandlers{manager: manager, store: store, db: db, cfg: cfg}
}

// Register installs the ingest route on r.
func (h *IngestHandlers) Register(r *mux.Router) {
	r.HandleFunc("/ingest/{streamId:[0-9]+}", h.handleIngest).Methods(http.MethodPost, http.MethodPut)
}

// handleIngest treats the request body as a live fMP4 byte stream: it
// registers a new segmenter for streamId, or reattaches to an existing
// one (marking a playlist discontinuity, since the new body starts its
// own init/moof sequence), and blocks for the duration of the upload.
func (h *IngestHandlers) handleIngest(w http.ResponseWriter, r *http.Request) {
	streamID, err := strconv.ParseInt(mux.Vars(r)["streamId"], 10, 64)
	if err != nil {
		http.Error(w, "invalid stream id", http.StatusBadRequest)
		return
	}

	ingestID := uuid.New().String()
	src := source.NewReader(r.Body, 0)

	stream, alreadyRegistered := h.manager.Get(streamID)
	if alreadyRegistered {
		log.Printf("handlers: ingest %s reattaching to stream %d", ingestID, streamID)
		if err := h.manager.Reattach(streamID, src); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		persisted, _ := h.loadPersistedConfig(streamID)

		seg, err := segmenter.New(segmenter.Config{
			StreamID:             streamID,
			SegmentDuration:      h.cfg.SegmentDuration,
			MaxSegments:          h.cfg.MaxSegments,
			KeyframeDebug:        h.cfg.KeyframeDebug,
			StartingSegmentIndex: persisted.StartingSegmentIndex,
			PendingDiscontinuity: persisted.PendingDiscontinuity,
			Clock:                clock.New(),
		}, h.store, nil, func(err error) {
			log.Printf("handlers: ingest %s stream %d segmenting error: %v", ingestID, streamID, err)
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if stream, err = h.manager.Register(streamID, seg); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Printf("handlers: ingest %s starting stream %d at segment index %d", ingestID, streamID, persisted.StartingSegmentIndex)
		if err := seg.Pipe(src); err != nil {
			log.Printf("handlers: ingest %s stream %d: pipe source: %v", ingestID, streamID, err)
		}
	}

	<-r.Context().Done()
	h.manager.Unregister(streamID)
	h.persistRestartPoint(streamID, stream)
	fmt.Fprintln(w, "ok")
}

// loadPersistedConfig returns the stream's last saved configuration, or
// a zero-valued one if nothing has been persisted (or no database is
// configured).
func (h *IngestHandlers) loadPersistedConfig(streamID int64) (models.StreamConfig, error) {
	if h.db == nil {
		return models.StreamConfig{}, nil
	}
	cfg, err := h.db.GetStreamConfig(streamID)
	if err != nil {
		return models.StreamConfig{}, err
	}
	return *cfg, nil
}

// persistRestartPoint saves the segment index the stream reached so a
// future ingest of the same streamId can continue the counter, and
// marks a pending discontinuity so the next segment after a restart
// announces a timeline break.
func (h *IngestHandlers) persistRestartPoint(streamID int64, stream *registry.Stream) {
	if h.db == nil || stream == nil {
		return
	}
	cfg := models.StreamConfig{
		StreamID:             streamID,
		Name:                 fmt.Sprintf("stream-%d", streamID),
		SegmentDurationMs:    h.cfg.SegmentDuration.Milliseconds(),
		MaxSegments:          h.cfg.MaxSegments,
		KeyframeDebug:        h.cfg.KeyframeDebug,
		StartingSegmentIndex: stream.Segmenter.SegmentIndex(),
		PendingDiscontinuity: true,
	}
	if existing, err := h.db.GetStreamConfig(streamID); err == nil {
		cfg.Name = existing.Name
		cfg.CreatedAt = existing.CreatedAt
	}
	if err := h.db.SaveStreamConfig(&cfg); err != nil {
		log.Printf("handlers: stream %d: persist restart point: %v", streamID, err)
	}
}
