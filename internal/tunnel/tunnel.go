// Package tunnel implements the WebSocket Tunnel (§4.H): the bidirectional
// relay between an upgraded client connection and an outbound connection to
// the sidecar, with per-frame access-token expiry checks and a rendezvous on
// the session's signal channel for out-of-band invalidation.
package tunnel

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamspace/authgateway/internal/cryptoutil"
	"github.com/streamspace/authgateway/internal/logging"
	"github.com/streamspace/authgateway/internal/registry"
)

// Upgrader is the process-wide HTTP-to-WebSocket upgrader for the inbound
// (client-facing) side of every tunnel. CORS is intentionally permissive:
// origin enforcement is the caller's responsibility (TLS termination and the
// accept loop are both deliberately out of scope), not this package's.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RejectWithError completes the upgrade handshake and then immediately sends
// a single text frame carrying msg followed by a close frame, per §4.H.1's
// "failures close the freshly-upgraded socket with a textual error frame and
// an immediate close frame (no data frames sent)". The handshake itself
// cannot be refused once Upgrade has not yet been called against w, so this
// is only reachable for failures discovered before the tunnel is opened.
func RejectWithError(w http.ResponseWriter, r *http.Request, msg string) error {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// Serve upgrades r, dials the sidecar, and relays frames in both directions
// until the tunnel is torn down. It blocks until both directions have
// exited. Transport errors are logged and treated as clean termination: they
// never remove session from the registry, which remains the expiry timer's
// job.
func Serve(w http.ResponseWriter, r *http.Request, sidecarURL string, session *registry.Session) error {
	log := logging.Tunnel()

	clientConn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer clientConn.Close()

	sidecarConn, _, err := websocket.DefaultDialer.DialContext(r.Context(), sidecarURL, nil)
	if err != nil {
		log.Warn().Err(err).Msg("could not dial sidecar, rejecting tunnel")
		_ = clientConn.WriteMessage(websocket.TextMessage, []byte("could not reach sidecar"))
		_ = clientConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
		return err
	}
	defer sidecarConn.Close()

	slot, ok := session.SocketSlot()
	if !ok {
		log.Error().Msg("tunnel dispatched for session with no socket slot")
		_ = clientConn.WriteMessage(websocket.TextMessage, []byte("no socket slot"))
		_ = clientConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		forwardDirection(sidecarConn, clientConn, session, slot.Signal, "sidecar->client")
	}()
	go func() {
		defer wg.Done()
		forwardDirection(clientConn, sidecarConn, session, slot.Signal, "client->sidecar")
	}()
	wg.Wait()

	log.Debug().Str("socket_uuid", slot.UUID).Msg("tunnel closed")
	return nil
}

type frame struct {
	messageType int
	data        []byte
	err         error
}

// forwardDirection reads frames from `from` and writes them to `to` until a
// signal arrives, the session's access JWT is observed expired, or a
// transport error ends the read loop. In every exit path it closes `to`'s
// write side cleanly: the opposite direction, reading that same connection,
// will observe the resulting read error and unwind on its own.
func forwardDirection(from, to *websocket.Conn, session *registry.Session, signal *registry.Signal, label string) {
	log := logging.Tunnel().With().Str("direction", label).Logger()

	id, signalCh := signal.Subscribe()
	defer signal.Unsubscribe(id)

	frames := make(chan frame, 1)
	go func() {
		for {
			mt, data, err := from.ReadMessage()
			frames <- frame{messageType: mt, data: data, err: err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case f := <-frames:
			if f.err != nil {
				log.Debug().Err(f.err).Msg("read side closed")
				closeWriteSide(to)
				return
			}
			if session.AccessJWT().IsExpired(cryptoutil.Now()) {
				log.Debug().Msg("access token expired mid-tunnel, closing")
				closeWriteSide(to)
				return
			}
			if err := to.WriteMessage(f.messageType, f.data); err != nil {
				log.Debug().Err(err).Msg("write side closed")
				closeWriteSide(to)
				return
			}
		case <-signalCh:
			log.Debug().Msg("invalidation signal received, closing")
			closeWriteSide(to)
			return
		}
	}
}

func closeWriteSide(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()
}
