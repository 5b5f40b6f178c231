package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsConn is one live WebSocket peer. Writes go through the outgoing channel
// so the single write pump owns the connection; unreliable sends are dropped
// when the channel is full instead of blocking the tick loop.
type wsConn struct {
	peer     PeerID
	conn     *websocket.Conn
	outgoing chan []byte
	closed   chan struct{}
}

func (c *wsConn) enqueue(data []byte, reliable bool) bool {
	if reliable {
		select {
		case c.outgoing <- data:
			return true
		case <-c.closed:
			return false
		}
	}

	select {
	case c.outgoing <- data:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

// WebsocketHostParams configures the listening side of the WebSocket
// transport.
type WebsocketHostParams struct {
	ListenAddress  string
	ListenEndpoint string

	MaxReadMessageSize int64
	SendBufferLength   int

	Logger *zap.Logger
}

// WebsocketHost accepts incoming peers over WebSocket upgrades and exposes
// them through the Transport contract. Incoming connections are
// auto-accepted.
type WebsocketHost struct {
	params   WebsocketHostParams
	upgrader *websocket.Upgrader

	in inbox

	mut_conns sync.RWMutex
	conns     map[PeerID]*wsConn

	nextConnId atomic.Uint32

	server *http.Server
	log    *zap.Logger
}

func CreateWebsocketHost(params WebsocketHostParams) *WebsocketHost {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if params.SendBufferLength <= 0 {
		params.SendBufferLength = 64
	}

	return &WebsocketHost{
		params: params,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[PeerID]*wsConn),
		log:   logger.With(zap.String("transport", "WebSocketHost")),
	}
}

// Start runs the HTTP listener until ctx is cancelled. It blocks.
func (ws *WebsocketHost) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(ws.params.ListenEndpoint, func(w http.ResponseWriter, r *http.Request) {
		ws.onRequest(ctx, w, r)
	})

	ws.server = &http.Server{
		Addr:    ws.params.ListenAddress,
		Handler: mux,
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws.log.Sugar().Infof("Starting WebSocket listener at %s", ws.params.ListenAddress)
		if err := ws.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			ws.log.Error("Unexpected WebSocket listener close", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownRelease()
		if err := ws.server.Shutdown(shutdownCtx); err != nil {
			ws.log.Error("Failed to gracefully shut down WebSocket listener", zap.Error(err))
		}
	}()

	wg.Wait()
	return nil
}

func (ws *WebsocketHost) onRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	c, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Error("Failed to upgrade HTTP request to WebSocket connection", zap.Error(err))
		return
	}

	peer := PeerID(fmt.Sprintf("%s#%d", r.RemoteAddr, ws.nextConnId.Add(1)))
	log := ws.log.With(zap.String("peer", string(peer)))

	if ws.params.MaxReadMessageSize > 0 {
		c.SetReadLimit(ws.params.MaxReadMessageSize)
	}

	conn := &wsConn{
		peer:     peer,
		conn:     c,
		outgoing: make(chan []byte, ws.params.SendBufferLength),
		closed:   make(chan struct{}),
	}

	ws.mut_conns.Lock()
	ws.conns[peer] = conn
	ws.mut_conns.Unlock()

	log.Info("Peer connected")
	ws.in.push(Event{Kind: EventConnect, Peer: peer})

	defer func() {
		close(conn.closed)
		c.Close()

		ws.mut_conns.Lock()
		delete(ws.conns, peer)
		ws.mut_conns.Unlock()

		log.Info("Peer disconnected")
		ws.in.push(Event{Kind: EventDisconnect, Peer: peer})
	}()

	runConn(ctx, conn, &ws.in, log)
}

func (ws *WebsocketHost) Send(peer PeerID, data []byte, reliable bool) bool {
	ws.mut_conns.RLock()
	conn, has := ws.conns[peer]
	ws.mut_conns.RUnlock()
	if !has {
		return false
	}
	return conn.enqueue(data, reliable)
}

func (ws *WebsocketHost) Broadcast(data []byte, reliable bool) {
	ws.mut_conns.RLock()
	defer ws.mut_conns.RUnlock()
	for _, conn := range ws.conns {
		conn.enqueue(data, reliable)
	}
}

func (ws *WebsocketHost) Poll() []Event {
	return ws.in.drain()
}

func (ws *WebsocketHost) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

// HostPeerID is the peer identity a WebsocketClient assigns to its single
// remote endpoint.
const HostPeerID PeerID = "host"

// WebsocketClient dials a host and exposes that single connection through
// the Transport contract.
type WebsocketClient struct {
	conn *wsConn
	in   inbox
	log  *zap.Logger
}

// DialWebsocket connects to a WebSocket host. The returned transport
// surfaces the host as HostPeerID and starts its pumps immediately.
func DialWebsocket(ctx context.Context, url string, sendBufferLength int, logger *zap.Logger) (*WebsocketClient, error) {
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if sendBufferLength <= 0 {
		sendBufferLength = 64
	}

	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	wc := &WebsocketClient{
		conn: &wsConn{
			peer:     HostPeerID,
			conn:     c,
			outgoing: make(chan []byte, sendBufferLength),
			closed:   make(chan struct{}),
		},
		log: logger.With(zap.String("transport", "WebSocketClient")),
	}

	wc.in.push(Event{Kind: EventConnect, Peer: HostPeerID})

	go func() {
		defer func() {
			close(wc.conn.closed)
			c.Close()
			wc.in.push(Event{Kind: EventDisconnect, Peer: HostPeerID})
		}()
		runConn(ctx, wc.conn, &wc.in, wc.log)
	}()

	return wc, nil
}

func (wc *WebsocketClient) Send(peer PeerID, data []byte, reliable bool) bool {
	if peer != HostPeerID {
		return false
	}
	return wc.conn.enqueue(data, reliable)
}

func (wc *WebsocketClient) Broadcast(data []byte, reliable bool) {
	wc.conn.enqueue(data, reliable)
}

func (wc *WebsocketClient) Poll() []Event {
	return wc.in.drain()
}

func (wc *WebsocketClient) Close() error {
	return wc.conn.conn.Close()
}

// runConn drives one WebSocket connection: a write pump fed by the outgoing
// channel and a blocking read loop pushing inbound frames. Returns when the
// connection dies or ctx is cancelled.
func runConn(ctx context.Context, conn *wsConn, in *inbox, log *zap.Logger) {
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			select {
			case <-ctx.Done():
				conn.conn.Close()
				return
			case <-conn.closed:
				return
			case data := <-conn.outgoing:
				if err := conn.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
					log.Warn("WebSocket write failed", zap.Error(err))
					conn.conn.Close()
					return
				}
			}
		}
	}()

	expectedCloseErrors := []int{websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived}
	for {
		msgType, payload, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, expectedCloseErrors...) {
				log.Warn("Unexpected WebSocket close", zap.Error(err))
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			log.Info("Ignoring non-binary message", zap.Int("size", len(payload)))
			continue
		}

		in.push(Event{Kind: EventMessage, Peer: conn.peer, Data: payload})
	}
}
