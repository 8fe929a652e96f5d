package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// MediaStore is the read side of a BlobStore, required to serve the
// artifacts a segmenter just wrote. store.Memory satisfies this;
// store.S3 does not implement it, so no media routes are served when
// the S3 store is configured.
type MediaStore interface {
	InitSegment(streamID int64) ([]byte, bool)
	Segment(streamID int64, name string) ([]byte, bool)
	Playlist(streamID int64) (string, bool)
}

// MediaHandlers serves the HLS artifacts produced by the segmenter
// pipeline: init segment, media segments, and the rolling playlist.
type MediaHandlers struct {
	store MediaStore
}

// NewMediaHandlers constructs the media-serving surface over store.
func NewMediaHandlers(store MediaStore) *MediaHandlers {
	return &MediaHandlers{store: store}
}

// Register installs the media routes on r.
func (h *MediaHandlers) Register(r *mux.Router) {
	r.HandleFunc("/hls/{streamId:[0-9]+}/init.mp4", h.handleInit)
	r.HandleFunc("/hls/{streamId:[0-9]+}/{segment:segment[0-9]+\\.m4s}", h.handleSegment)
	r.HandleFunc("/hls/{streamId:[0-9]+}/stream.m3u8", h.handlePlaylist)
}

func (h *MediaHandlers) handleInit(w http.ResponseWriter, r *http.Request) {
	streamID, err := strconv.ParseInt(mux.Vars(r)["streamId"], 10, 64)
	if err != nil {
		http.Error(w, "invalid stream id", http.StatusBadRequest)
		return
	}
	data, ok := h.store.InitSegment(streamID)
	if !ok {
		http.Error(w, "init segment not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Write(data)
}

func (h *MediaHandlers) handleSegment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	streamID, err := strconv.ParseInt(vars["streamId"], 10, 64)
	if err != nil {
		http.Error(w, "invalid stream id", http.StatusBadRequest)
		return
	}
	data, ok := h.store.Segment(streamID, vars["segment"])
	if !ok {
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Write(data)
}

func (h *MediaHandlers) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	streamID, err := strconv.ParseInt(mux.Vars(r)["streamId"], 10, 64)
	if err != nil {
		http.Error(w, "invalid stream id", http.StatusBadRequest)
		return
	}
	text, ok := h.store.Playlist(streamID)
	if !ok {
		http.Error(w, "playlist not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(text))
}
