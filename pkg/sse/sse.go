package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultReplaySize = 256

type Client struct {
	id   string
	ch   chan string
	done chan struct{}
}

// Hub fans events out to connected stream clients. Recent events are kept so
// a reconnecting client can resume from its Last-Event-ID.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	nextID   uint64
	replay   *lru.Cache[uint64, string]
	interval time.Duration
	retryMs  int
	closed   bool

	// OnConnect and OnDisconnect, when set, observe client churn.
	OnConnect    func()
	OnDisconnect func()
}

func NewHub(interval time.Duration, replaySize int) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	replay, _ := lru.New[uint64, string](replaySize)
	return &Hub{clients: make(map[string]*Client), replay: replay, interval: interval, retryMs: 5000}
}

func (h *Hub) AddClient(id string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{id: id, ch: make(chan string, 64), done: make(chan struct{})}
	if h.closed {
		close(c.done)
		return c
	}
	if _, ok := h.clients[id]; ok {
		h.removeLocked(id)
	}
	h.clients[id] = c
	if h.OnConnect != nil {
		h.OnConnect()
	}
	return c
}

func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

// detach removes c unless its id has since been taken by a newer connection.
func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.id] == c {
		h.removeLocked(c.id)
	}
}

func (h *Hub) removeLocked(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	delete(h.clients, id)
	if h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish assigns the next event id, stores the event for replay and sends
// it to every client. Slow clients drop events rather than block.
func (h *Hub) Publish(event string, v interface{}) (uint64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	msg := formatEvent(id, event, string(b))
	h.replay.Add(id, msg)
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.ch <- msg:
		default:
		}
	}
	return id, nil
}

// Since returns the buffered events newer than lastID, oldest first.
func (h *Hub) Since(lastID uint64) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for _, id := range h.replay.Keys() {
		if id <= lastID {
			continue
		}
		if msg, ok := h.replay.Peek(id); ok {
			out = append(out, msg)
		}
	}
	return out
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id := range h.clients {
		h.removeLocked(id)
	}
}

func formatEvent(id uint64, event, data string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", id)
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return b.String()
}

// Serve streams events to one client until it disconnects or the hub closes.
func (h *Hub) Serve(c *gin.Context, clientID string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)

	client := h.AddClient(clientID)
	defer h.detach(client)

	if last, err := strconv.ParseUint(c.GetHeader("Last-Event-ID"), 10, 64); err == nil {
		for _, msg := range h.Since(last) {
			c.Writer.Write([]byte(msg))
		}
	}
	flusher.Flush()

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}
