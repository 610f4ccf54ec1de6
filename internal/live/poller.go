package live

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/logging"
	"github.com/huangsam/perfscope/schema"
)

// pollLimit caps the samples fetched per poll.
const pollLimit = 5000

// Poller feeds new samples from the data source into the buffer and broadcasts
// the buckets that close.
type Poller struct {
	src      contract.DataSource
	buf      *Buffer
	hub      *Hub
	interval time.Duration
	now      func() time.Time

	lastID int64
	since  time.Time
}

// NewPoller creates a poller that only streams samples recorded after it starts.
func NewPoller(src contract.DataSource, buf *Buffer, hub *Hub, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	p := &Poller{src: src, buf: buf, hub: hub, interval: interval, now: time.Now}
	p.since = p.now().UTC()
	return p
}

func (p *Poller) String() string {
	return "live-poller"
}

// Serve polls until ctx is done. Poll failures are logged and retried on the next tick.
func (p *Poller) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				logging.Err(err).Msg("live poll failed")
			}
		}
	}
}

// Poll runs one fetch and flush cycle and returns the points it closed.
func (p *Poller) Poll(ctx context.Context) ([]schema.LivePoint, error) {
	filter := schema.MetricFilter{After: p.lastID, Limit: pollLimit, ByID: true}
	if p.lastID == 0 {
		filter.Start = p.since
	}
	samples, err := p.src.ListMetrics(ctx, nil, filter)
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		p.lastID = max(p.lastID, s.ID)
	}

	now := p.now()
	p.buf.Add(samples, now)
	closed := p.buf.Flush(now)
	if len(closed) > 0 && p.hub != nil {
		p.hub.Broadcast(Message{Type: MessageTypePoints, Data: closed})
	}
	return closed, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Gate admits live connections. Release is called when the connection closes.
type Gate interface {
	Acquire(r *http.Request) (release func(), ok bool)
}

// Handler upgrades the request to a websocket subscribed to the hub. New clients
// first receive the closed series as a snapshot. A nil gate admits everyone.
func Handler(hub *Hub, buf *Buffer, gate Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		release := func() {}
		if gate != nil {
			var ok bool
			if release, ok = gate.Acquire(r); !ok {
				http.Error(w, "too many live connections", http.StatusTooManyRequests)
				return
			}
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			release()
			logging.Err(err).Msg("websocket upgrade failed")
			return
		}
		client := NewClient(hub, conn)
		client.onClose = release
		if !client.Start(Message{Type: MessageTypeSnapshot, Data: buf.Series()}) {
			release()
			_ = conn.Close()
		}
	}
}
