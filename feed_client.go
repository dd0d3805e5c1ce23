package wwvb

import (
	"encoding/binary"
	"io"
	"net"
)

// FeedClient reads frame records from a FeedServer
type FeedClient struct {
	Socket net.Conn
	Buffer []byte
}

// NewFeedClient creates a new client instance
func NewFeedClient() *FeedClient {
	return &FeedClient{
		Buffer: make([]byte, 1024),
	}
}

// Connect connects to a feed
func (c *FeedClient) Connect(address string) error {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return err
	}
	c.Socket = conn
	return nil
}

// Disconnect closes the connection
func (c *FeedClient) Disconnect() {
	if c.Socket != nil {
		_ = c.Socket.Close()
		c.Socket = nil
	}
}

// ReadRecord reads one record from the socket
func (c *FeedClient) ReadRecord() (*FrameRecord, error) {
	// SYNC + FRAMESIZE
	if _, err := io.ReadFull(c.Socket, c.Buffer[:4]); err != nil {
		return nil, err
	}

	frameSize := int(binary.BigEndian.Uint16(c.Buffer[2:4]))
	if frameSize < 4 || frameSize > len(c.Buffer) {
		return nil, ErrInvalidSize
	}

	if _, err := io.ReadFull(c.Socket, c.Buffer[4:frameSize]); err != nil {
		return nil, err
	}

	r := &FrameRecord{}
	if err := r.Unpack(c.Buffer[:frameSize]); err != nil {
		return nil, err
	}
	return r, nil
}
