package server

import (
	"net"
	"sync"
	"time"

	"gridclash/internal/config"
	"gridclash/internal/logging"
)

// fakeConn is a minimal net.PacketConn double that records every
// WriteTo call instead of touching a real socket.
type fakeConn struct {
	mu   sync.Mutex
	sent []sentDatagram
}

type sentDatagram struct {
	addr net.Addr
	data []byte
}

func (f *fakeConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentDatagram{addr: addr, data: append([]byte(nil), b...)})
	return len(b), nil
}

func (f *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) { return 0, nil, net.ErrClosed }
func (f *fakeConn) Close() error                             { return nil }
func (f *fakeConn) LocalAddr() net.Addr                      { return testAddr("server:0") }
func (f *fakeConn) SetDeadline(time.Time) error              { return nil }
func (f *fakeConn) SetReadDeadline(time.Time) error          { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error         { return nil }

func (f *fakeConn) snapshot() []sentDatagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentDatagram(nil), f.sent...)
}

type testAddr string

func (a testAddr) Network() string { return "udp" }
func (a testAddr) String() string  { return string(a) }

func newTestServer(now func() time.Time) (*Server, *fakeConn) {
	cfg := &config.Config{
		GridSize:         4,
		TickRate:         20,
		HeartbeatTimeout: 3 * time.Second,
		ColorTimeout:     500 * time.Millisecond,
		GameOverTimeout:  500 * time.Millisecond,
		EventTimeout:     300 * time.Millisecond,
		EventMaxRetries:  6,
		Palette: []config.ColorConfig{
			{R: 220, G: 20, B: 60},
			{R: 30, G: 144, B: 255},
		},
	}
	s := New(cfg, logging.NewTestLogger(), WithClock(now))
	conn := &fakeConn{}
	s.conn = conn
	return s, conn
}
