package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// progressEvent is the wire shape pushed to subscribers
type progressEvent struct {
	JobID          string  `json:"job_id"`
	Status         string  `json:"status"`
	Progress       float64 `json:"progress"`
	ProcessedPages int     `json:"processed_pages"`
	TotalPages     int     `json:"total_pages"`
	TotalFound     int     `json:"total_found"`
	Error          string  `json:"error,omitempty"`
}

// WebSocketHandler streams per-job progress to subscribed clients
type WebSocketHandler struct {
	jobStorage interfaces.JobStorage
	upgrader   websocket.Upgrader
	logger     arbor.ILogger

	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]bool // job id -> connections
}

// NewWebSocketHandler creates the progress stream handler
func NewWebSocketHandler(jobStorage interfaces.JobStorage, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		jobStorage: jobStorage,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the UI origin; the API carries
			// no credentials so cross-origin reads are harmless
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[string]map[*websocket.Conn]bool),
	}
}

// HandleProgress upgrades the connection and subscribes it to one job.
// GET /api/jobs/{id}/ws
func (h *WebSocketHandler) HandleProgress(w http.ResponseWriter, r *http.Request, jobID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	if h.clients[jobID] == nil {
		h.clients[jobID] = make(map[*websocket.Conn]bool)
	}
	h.clients[jobID][conn] = true
	h.mu.Unlock()

	h.logger.Debug().Str("job_id", jobID).Msg("WebSocket client subscribed")

	// Current state first so late subscribers see where the job is
	if job, err := h.jobStorage.GetJob(r.Context(), jobID); err == nil && job != nil {
		h.send(conn, eventFor(job))
	}

	go h.pingLoop(jobID, conn)
	h.readLoop(jobID, conn)
}

// Broadcast pushes a job's progress to its subscribers. Safe to call from
// the orchestrator's page loop.
func (h *WebSocketHandler) Broadcast(job *models.Job) {
	event := eventFor(job)

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients[job.ID]))
	for conn := range h.clients[job.ID] {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := h.send(conn, event); err != nil {
			h.drop(job.ID, conn)
		}
	}
}

func eventFor(job *models.Job) progressEvent {
	return progressEvent{
		JobID:          job.ID,
		Status:         string(job.Status),
		Progress:       job.Progress,
		ProcessedPages: job.ProcessedPages,
		TotalPages:     job.TotalPages,
		TotalFound:     job.TotalFound,
		Error:          job.Error,
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, event progressEvent) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event)
}

// readLoop drains client frames until the peer closes, then unsubscribes
func (h *WebSocketHandler) readLoop(jobID string, conn *websocket.Conn) {
	defer h.drop(jobID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) pingLoop(jobID string, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			h.drop(jobID, conn)
			return
		}
	}
}

func (h *WebSocketHandler) drop(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	if conns, ok := h.clients[jobID]; ok {
		if conns[conn] {
			delete(conns, conn)
			conn.Close()
		}
		if len(conns) == 0 {
			delete(h.clients, jobID)
		}
	}
	h.mu.Unlock()
}
