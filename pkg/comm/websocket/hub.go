// Package websocket streams meter readings to WebSocket clients as JSON.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/meter.go/pkg/bl0942"
	fx "github.com/robotalks/meter.go/pkg/framework"
	"github.com/robotalks/meter.go/pkg/msgs"
)

// DefaultQueueSize is the number of readings queued per client
// before readings are dropped.
const DefaultQueueSize = 32

// Hub is a sensor Sink broadcasting readings to all connected clients.
type Hub struct {
	MeterID   string
	QueueSize int
	Now       func() time.Time

	lock    sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	sendCh chan *msgs.Reading
}

// Sensor implements sensor.Sink.
func (h *Hub) Sensor(c bl0942.Channel) bl0942.Sensor {
	return bl0942.PublishStateFunc(func(v float32) {
		now := time.Now
		if h.Now != nil {
			now = h.Now
		}
		h.Broadcast(&msgs.Reading{
			Meter:     h.MeterID,
			Channel:   c.String(),
			Value:     v,
			Unit:      c.Unit(),
			Timestamp: now().UnixNano(),
		})
	})
}

// Broadcast queues a reading to every client. A client not keeping up
// misses the reading.
func (h *Hub) Broadcast(r *msgs.Reading) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	for c := range h.clients {
		select {
		case c.sendCh <- r:
		default:
			glog.V(2).Infof("websocket %s: drop %s", c.conn.Request().RemoteAddr, r.Channel)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements http.Handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serve).ServeHTTP(w, r)
}

func (h *Hub) add(c *client) {
	h.lock.Lock()
	if h.clients == nil {
		h.clients = make(map[*client]struct{})
	}
	h.clients[c] = struct{}{}
	h.lock.Unlock()
}

func (h *Hub) remove(c *client) {
	h.lock.Lock()
	delete(h.clients, c)
	h.lock.Unlock()
}

func (h *Hub) serve(conn *websocket.Conn) {
	size := h.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	c := &client{conn: conn, sendCh: make(chan *msgs.Reading, size)}
	addr := conn.Request().RemoteAddr
	glog.Infof("websocket %s connected", addr)
	h.add(c)
	defer func() {
		h.remove(c)
		conn.Close()
		glog.Infof("websocket %s disconnected", addr)
	}()

	// clients don't talk, reading only detects the close.
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		var discard []byte
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-doneCh:
			return
		case r := <-c.sendCh:
			if err := websocket.JSON.Send(conn, r); err != nil {
				glog.V(1).Infof("websocket %s send error: %v", addr, err)
				return
			}
		}
	}
}

// Server serves a Hub over HTTP.
type Server struct {
	Addr string
	Path string
	Hub  *Hub
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("websocket", s))
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	path := s.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, s.Hub)
	srv := &http.Server{Addr: s.Addr, Handler: mux}
	glog.Infof("websocket listening on %s%s", s.Addr, path)
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
}
