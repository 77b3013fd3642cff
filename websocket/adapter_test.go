package websocket

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohithg/Real-Time-Collaborative-Whiteboard/domain"
)

var errTransportClosed = errors.New("transport closed")

type frame struct {
	kind int
	data []byte
}

// memTransport is an in-memory stand-in for *websocket.Conn.
type memTransport struct {
	inbound chan frame
	closed  chan struct{}
	once    sync.Once

	mu       sync.Mutex
	written  []frame
	writeErr error
}

func newMemTransport() *memTransport {
	return &memTransport{
		inbound: make(chan frame, 16),
		closed:  make(chan struct{}),
	}
}

func (m *memTransport) ReadMessage() (int, []byte, error) {
	select {
	case f := <-m.inbound:
		return f.kind, f.data, nil
	case <-m.closed:
		return 0, nil, errTransportClosed
	}
}

func (m *memTransport) WriteMessage(kind int, data []byte) error {
	select {
	case <-m.closed:
		return errTransportClosed
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, frame{kind: kind, data: data})
	return nil
}

func (m *memTransport) SetReadLimit(int64)                {}
func (m *memTransport) SetReadDeadline(time.Time) error   { return nil }
func (m *memTransport) SetWriteDeadline(time.Time) error  { return nil }
func (m *memTransport) SetPongHandler(func(string) error) {}

func (m *memTransport) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *memTransport) text() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, f := range m.written {
		if f.kind == websocket.TextMessage {
			out = append(out, string(f.data))
		}
	}
	return out
}

func (m *memTransport) sentClose() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.written {
		if f.kind == websocket.CloseMessage {
			return true
		}
	}
	return false
}

type recordingBroadcaster struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
	members      map[string]domain.Connection
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{members: make(map[string]domain.Connection)}
}

func (b *recordingBroadcaster) Register(conn domain.Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = append(b.registered, conn.ID())
	b.members[conn.ID()] = conn
}

func (b *recordingBroadcaster) Unregister(conn domain.Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.members[conn.ID()]; !ok {
		return
	}
	delete(b.members, conn.ID())
	b.unregistered = append(b.unregistered, conn.ID())
}

func (b *recordingBroadcaster) Broadcast(domain.Connection, []byte) {}

func (b *recordingBroadcaster) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.members)
}

func (b *recordingBroadcaster) getUnregistered() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.unregistered...)
}

type recordingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) Handle(_ domain.Connection, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, string(data))
}

func (h *recordingHandler) getMessages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

var testLimits = Limits{SendBuffer: 8, MaxMessageSize: 4096}

func waitClosed(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatalf("connection %s did not close, state %s", c.ID(), c.State())
	}
}

func TestConn_Lifecycle(t *testing.T) {
	transport := newMemTransport()
	broadcaster := newRecordingBroadcaster()
	conn := NewConn("c1", transport, broadcaster, &recordingHandler{}, testLimits)

	assert.Equal(t, StateConnecting, conn.State())
	assert.ErrorIs(t, conn.Send([]byte("early")), domain.ErrConnectionClosed)

	conn.Start()
	assert.Equal(t, StateOpen, conn.State())
	assert.Equal(t, 1, broadcaster.Size())

	transport.Close()
	waitClosed(t, conn)

	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, []string{"c1"}, broadcaster.getUnregistered())
	assert.ErrorIs(t, conn.Send([]byte("late")), domain.ErrConnectionClosed)

	conn.Start()
	assert.Equal(t, StateClosed, conn.State(), "closed is terminal")
}

func TestConn_InboundInOrder(t *testing.T) {
	transport := newMemTransport()
	handler := &recordingHandler{}
	conn := NewConn("c1", transport, newRecordingBroadcaster(), handler, testLimits)
	conn.Start()

	transport.inbound <- frame{kind: websocket.TextMessage, data: []byte("1")}
	transport.inbound <- frame{kind: websocket.BinaryMessage, data: []byte{0xff}}
	transport.inbound <- frame{kind: websocket.TextMessage, data: []byte("2")}
	transport.inbound <- frame{kind: websocket.TextMessage, data: []byte("3")}

	require.Eventually(t, func() bool {
		return len(handler.getMessages()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1", "2", "3"}, handler.getMessages())

	require.NoError(t, conn.Close())
	waitClosed(t, conn)
}

func TestConn_OutboundFIFO(t *testing.T) {
	transport := newMemTransport()
	conn := NewConn("c1", transport, newRecordingBroadcaster(), &recordingHandler{}, testLimits)
	conn.Start()

	want := []string{"a", "b", "c", "d"}
	for _, m := range want {
		require.NoError(t, conn.Send([]byte(m)))
	}
	require.NoError(t, conn.Close())
	waitClosed(t, conn)

	assert.Equal(t, want, transport.text(), "queued frames flush before close")
	assert.True(t, transport.sentClose())
}

func TestConn_SendBufferFull(t *testing.T) {
	transport := newMemTransport()
	conn := NewConn("c1", transport, newRecordingBroadcaster(), &recordingHandler{}, Limits{SendBuffer: 1, MaxMessageSize: 4096})

	// Open without pumps so nothing drains the queue.
	conn.mu.Lock()
	conn.state = StateOpen
	conn.mu.Unlock()

	require.NoError(t, conn.Send([]byte("first")))
	assert.ErrorIs(t, conn.Send([]byte("second")), domain.ErrSendBufferFull)
}

func TestConn_WriteErrorTearsDown(t *testing.T) {
	transport := newMemTransport()
	transport.writeErr = errors.New("broken pipe")
	broadcaster := newRecordingBroadcaster()
	conn := NewConn("c1", transport, broadcaster, &recordingHandler{}, testLimits)
	conn.Start()

	require.NoError(t, conn.Send([]byte("x")))
	waitClosed(t, conn)

	assert.Equal(t, []string{"c1"}, broadcaster.getUnregistered())
}

func TestConn_CloseIdempotent(t *testing.T) {
	transport := newMemTransport()
	broadcaster := newRecordingBroadcaster()
	conn := NewConn("c1", transport, broadcaster, &recordingHandler{}, testLimits)
	conn.Start()

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	transport.Close()
	waitClosed(t, conn)
	require.NoError(t, conn.Close())

	assert.Equal(t, []string{"c1"}, broadcaster.getUnregistered())
}

func TestConn_CloseBeforeStart(t *testing.T) {
	transport := newMemTransport()
	broadcaster := newRecordingBroadcaster()
	conn := NewConn("c1", transport, broadcaster, &recordingHandler{}, testLimits)

	require.NoError(t, conn.Close())
	waitClosed(t, conn)
	conn.Start()

	assert.Equal(t, 0, broadcaster.Size())
	assert.Empty(t, broadcaster.getUnregistered())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateConnecting, "connecting"},
		{StateOpen, "open"},
		{StateClosing, "closing"},
		{StateClosed, "closed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
