package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/entitykit/entitykit/internal/core/observability/log"
)

// WSServer serves the command protocol over websocket. Each text frame is one
// JSON Request, each reply one JSON Response.
type WSServer struct {
	addr       string
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	log        log.Log
}

func NewWSServer(addr string, dispatcher *Dispatcher, logger log.Log) *WSServer {
	if logger == nil {
		logger = log.Provide()
	}
	return &WSServer{
		addr:       addr,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger,
	}
}

// Serve listens until ctx is cancelled, then shuts the listener down
// gracefully.
func (s *WSServer) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleConn(ctx, w, r)
	})

	server := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("websocket gateway listening", log.String("addr", s.addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *WSServer) handleConn(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.Error(err))
		return
	}
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.log.Debug("websocket client connected", log.String("remote", remote))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("websocket read failed", log.String("remote", remote), log.Error(err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			if err := conn.WriteJSON(fail(err)); err != nil {
				return
			}
			continue
		}

		resp := s.dispatcher.Handle(ctx, req)
		if err := conn.WriteJSON(resp); err != nil {
			s.log.Warn("websocket write failed", log.String("remote", remote), log.Error(err))
			return
		}
	}
}
