package logging

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// LogTailHub is a logrus.Hook that fans every formatted log line out to
// connected admin websocket clients, mirroring the shape of the teacher's
// wsrelay session pool but broadcast-only: a log-tail client never sends
// anything back.
type LogTailHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*logTailClient]struct{}
}

type logTailClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// NewLogTailHub builds an empty hub. Register it with log.AddHook and mount
// its ServeHTTP under an admin route to expose a live log tail.
func NewLogTailHub() *LogTailHub {
	return &LogTailHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*logTailClient]struct{}),
	}
}

// Levels satisfies logrus.Hook; the hub tails every level.
func (h *LogTailHub) Levels() []log.Level { return log.AllLevels }

// Fire satisfies logrus.Hook.
func (h *LogTailHub) Fire(entry *log.Entry) error {
	if h.clientCount() == 0 {
		return nil
	}
	line, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		return nil
	}
	h.broadcast(line)
	return nil
}

func (h *LogTailHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *LogTailHub) broadcast(line []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case <-c.done:
		case c.send <- line:
		default: // slow reader; drop the line rather than block logging
		}
	}
}

func (h *LogTailHub) register(c *logTailClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *LogTailHub) unregister(c *logTailClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeHTTP upgrades the connection and streams log lines to it until the
// client disconnects or a write fails.
func (h *LogTailHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("logtail: upgrade failed: %v", err)
		return
	}
	client := &logTailClient{conn: conn, send: make(chan []byte, 64), done: make(chan struct{})}
	h.register(client)
	defer func() {
		h.unregister(client)
		_ = conn.Close()
	}()

	go client.drainReads()

	for {
		select {
		case <-client.done:
			return
		case line := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
				return
			}
		}
	}
}

// drainReads discards anything the client sends and closes done the moment
// the connection goes away, since that's the only way a passive reader
// such as this one observes a client-initiated close.
func (c *logTailClient) drainReads() {
	defer close(c.done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
