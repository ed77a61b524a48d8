package pairingws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/Abraxas-365/identity/pkg/pairing"
)

var (
	ErrClientClosed = errors.New("pairingws: client closed")
	ErrSlowConsumer = errors.New("pairingws: outbound buffer full")
)

// Client queues encoded frames for a single writer goroutine. It
// implements pairinghub.Sender.
type Client struct {
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func NewClient(buffer int) *Client {
	return &Client{
		out:  make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Send never blocks. A full buffer drops the frame and reports
// ErrSlowConsumer.
func (c *Client) Send(ev pairing.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.out <- b:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// WriteLoop hands queued frames to write until Close or a write error.
func (c *Client) WriteLoop(write func([]byte) error) error {
	for {
		select {
		case <-c.done:
			return nil
		case b := <-c.out:
			if err := write(b); err != nil {
				return err
			}
		}
	}
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}
