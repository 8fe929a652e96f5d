package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"hls-fragmenter/models"
	"hls-fragmenter/registry"
)

var statsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatsHandlers pushes periodic KeyframeStats snapshots for a stream
// over a WebSocket, so an operator dashboard can watch keyframe
// health live. A read pump detects client disconnects while a
// separate push pump streams snapshots on an interval.
type StatsHandlers struct {
	manager  *registry.Manager
	interval time.Duration
}

// NewStatsHandlers constructs the stats WebSocket surface. interval is
// how often a snapshot is pushed; callers typically use a few seconds.
func NewStatsHandlers(manager *registry.Manager, interval time.Duration) *StatsHandlers {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatsHandlers{manager: manager, interval: interval}
}

// Register installs the stats WebSocket route on r.
func (h *StatsHandlers) Register(r *mux.Router) {
	r.HandleFunc("/ws/stats/{streamId:[0-9]+}", h.handleStats)
}

func (h *StatsHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	streamID, err := strconv.ParseInt(mux.Vars(r)["streamId"], 10, 64)
	if err != nil {
		http.Error(w, "invalid stream id", http.StatusBadRequest)
		return
	}

	conn, err := statsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("handlers: stats websocket upgrade failed: %v", err)
		return
	}

	client := &statsClient{conn: conn, manager: h.manager, streamID: streamID, interval: h.interval}
	go client.readPump()
	go client.pushPump()
}

type statsClient struct {
	conn     *websocket.Conn
	manager  *registry.Manager
	streamID int64
	interval time.Duration

	mu     sync.Mutex
	active bool
}

// readPump drains and discards client messages, purely to detect
// disconnects via read errors.
func (c *statsClient) readPump() {
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.mu.Lock()
			c.active = false
			c.mu.Unlock()
			c.conn.Close()
			return
		}
	}
}

func (c *statsClient) pushPump() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		active := c.active
		c.mu.Unlock()
		if !active {
			return
		}

		stream, ok := c.manager.Get(c.streamID)
		if !ok {
			return
		}
		stats := stream.Segmenter.KeyframeStats()
		payload := models.KeyframeStats{
			KeyframeCount:                  stats.KeyframeCount,
			NonKeyframeCount:               stats.NonKeyframeCount,
			IndeterminateCount:             stats.IndeterminateCount,
			MinKeyframeIntervalMs:          stats.MinKeyframeIntervalMs,
			MaxKeyframeIntervalMs:          stats.MaxKeyframeIntervalMs,
			AverageKeyframeIntervalMs:      stats.AverageKeyframeIntervalMs,
			SegmentsWithoutLeadingKeyframe: stats.SegmentsWithoutLeadingKeyframe,
		}

		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("handlers: marshal keyframe stats: %v", err)
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
		if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			return
		}
	}
}
