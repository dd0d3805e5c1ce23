package wwvb

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	feedWriteTimeout = 100 * time.Millisecond
	feedQueueSize    = 8
)

// feedConn serializes the records sent to one client. A failed or short write closes
// the connection, since the client could not find the next record boundary.
type feedConn struct {
	net.Conn
	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newFeedConn(conn net.Conn) *feedConn {
	return &feedConn{
		Conn:  conn,
		queue: make(chan []byte, feedQueueSize),
		done:  make(chan struct{}),
	}
}

// enqueue queues data without blocking; a full queue drops the whole record
func (c *feedConn) enqueue(data []byte) bool {
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

func (c *feedConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Conn.Close()
	})
}

// writeLoop sends queued records until the connection is closed
func (c *feedConn) writeLoop(f *FeedServer) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.queue:
			if err := f.send(c, data); err != nil {
				f.log().WithFields(log.Fields{
					"client": c.RemoteAddr().String(),
					"error":  err,
				}).Debug("Error sending frame record, dropping client")
				c.close()
				return
			}
		}
	}
}

// FeedServer sends a FrameRecord to every connected client whenever a frame is
// published. Newly connected clients first receive the latest record.
type FeedServer struct {
	StationID    uint16
	Socket       net.Listener
	Clients      []*feedConn
	ClientsMutex sync.Mutex
	running      atomic.Bool
	latest       atomic.Pointer[[]byte]
	logger       *log.Logger
	metrics      MetricsRecorder
}

// NewFeedServer creates a feed for the given station id
func NewFeedServer(stationID uint16) *FeedServer {
	return &FeedServer{
		StationID: stationID,
		Clients:   make([]*feedConn, 0),
	}
}

// SetLogger sets the logger for the feed
func (f *FeedServer) SetLogger(logger *log.Logger) {
	f.logger = logger
}

// SetMetrics sets the metrics recorder for the feed
func (f *FeedServer) SetMetrics(m MetricsRecorder) {
	f.metrics = m
}

func (f *FeedServer) log() *log.Logger {
	if f.logger == nil {
		f.logger = log.New()
	}
	return f.logger
}

// Start starts listening on address
func (f *FeedServer) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	f.Socket = listener
	f.running.Store(true)

	f.log().WithField("address", listener.Addr().String()).Info("Frame feed listening")

	go f.acceptLoop()

	return nil
}

// Addr returns the listening address
func (f *FeedServer) Addr() net.Addr {
	if f.Socket == nil {
		return nil
	}
	return f.Socket.Addr()
}

func (f *FeedServer) acceptLoop() {
	for f.running.Load() {
		c, err := f.Socket.Accept()
		if err != nil {
			if !f.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			f.log().WithError(err).Error("Error accepting connection")
			continue
		}

		conn := newFeedConn(c)
		clientAddr := conn.RemoteAddr().String()
		f.log().WithField("client", clientAddr).Info("New feed client connected")

		f.ClientsMutex.Lock()
		f.Clients = append(f.Clients, conn)
		f.ClientsMutex.Unlock()

		if f.metrics != nil {
			f.metrics.RecordClientConnected()
		}

		if latest := f.latest.Load(); latest != nil {
			conn.enqueue(*latest)
		}

		go conn.writeLoop(f)
		go f.handleClient(conn)
	}
}

// Stop closes the listener and every client
func (f *FeedServer) Stop() {
	f.running.Store(false)
	if f.Socket != nil {
		_ = f.Socket.Close()
	}

	f.ClientsMutex.Lock()
	for _, conn := range f.Clients {
		conn.close()
	}
	f.Clients = make([]*feedConn, 0)
	f.ClientsMutex.Unlock()

	f.log().Info("Frame feed stopped")
}

// handleClient waits for the client to go away; anything it sends is discarded
func (f *FeedServer) handleClient(conn *feedConn) {
	clientAddr := conn.RemoteAddr().String()

	defer func() {
		conn.close()
		f.removeClient(conn)

		if f.metrics != nil {
			f.metrics.RecordClientDisconnected()
		}

		f.log().WithField("client", clientAddr).Info("Feed client disconnected")
	}()

	if _, err := io.Copy(io.Discard, conn.Conn); err != nil && f.running.Load() && !errors.Is(err, net.ErrClosed) {
		f.log().WithFields(log.Fields{
			"client": clientAddr,
			"error":  err,
		}).Debug("Error reading from feed client")
	}
}

func (f *FeedServer) removeClient(conn *feedConn) {
	f.ClientsMutex.Lock()
	defer f.ClientsMutex.Unlock()
	for i, c := range f.Clients {
		if c == conn {
			f.Clients = append(f.Clients[:i], f.Clients[i+1:]...)
			return
		}
	}
}

// Publish packs cf and queues it for every client
func (f *FeedServer) Publish(cf *CommittedFrame) error {
	r, err := NewFrameRecord(f.StationID, cf)
	if err != nil {
		return err
	}
	data, err := r.Pack()
	if err != nil {
		return err
	}
	f.latest.Store(&data)

	f.ClientsMutex.Lock()
	clients := append([]*feedConn(nil), f.Clients...)
	f.ClientsMutex.Unlock()

	for _, conn := range clients {
		if !conn.enqueue(data) {
			f.log().WithField("client", conn.RemoteAddr().String()).Debug("Feed client queue full, record dropped")
		}
	}
	return nil
}

func (f *FeedServer) send(conn *feedConn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
		return err
	}
	n, err := conn.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	if f.metrics != nil {
		f.metrics.RecordFeedRecordSent(len(data))
	}
	return nil
}
