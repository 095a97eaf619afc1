package link

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/rpc"
	"net/rpc/jsonrpc"

	"golang.org/x/net/websocket"

	"github.com/roversim-team/roversim/sim-bridge/pkg/bridge"
	"github.com/roversim-team/roversim/sim-bridge/pkg/fdm"
	"github.com/roversim-team/roversim/sim-bridge/pkg/overhead"
	"github.com/roversim-team/roversim/sim-bridge/pkg/scene"
	"github.com/roversim-team/roversim/sim-bridge/pkg/tunable"
)

// The autopilot drives the bridge over JSON-RPC, either on a websocket (the
// /ws endpoint) or a raw TCP connection.  Update is the lockstep exchange:
// one call, one servo packet in, a fixed number of solver steps, one FDM
// packet out.

// Service is the RPC surface, registered as "Bridge".
type Service struct {
	bridge   *bridge.Bridge
	tunables *tunable.Tunables
}

func NewService(b *bridge.Bridge, t *tunable.Tunables) *Service {
	return &Service{bridge: b, tunables: t}
}

// Update applies the servo packet, advances the solver and returns the
// resulting state.
func (s *Service) Update(req fdm.ServoPacket, rep *fdm.Packet) error {
	*rep = s.bridge.Exchange(req)
	return nil
}

// Pause sets the emulated pause state.
func (s *Service) Pause(req bool, rep *bool) error {
	s.bridge.SetSimPaused(req)
	*rep = s.bridge.SimPaused()
	return nil
}

// Scene returns the scene description the bridge is running.
func (s *Service) Scene(req struct{}, rep *scene.Config) error {
	*rep = s.bridge.Config()
	return nil
}

type TuneRequest struct {
	Name  string  `json:"name"`
	Delta float64 `json:"delta"`
}

// Tune nudges a named live tunable and returns its new value.
func (s *Service) Tune(req TuneRequest, rep *float64) error {
	if s.tunables == nil {
		return fmt.Errorf("no tunables registered")
	}
	tn := s.tunables.ByName(req.Name)
	if tn == nil {
		return fmt.Errorf("unknown tunable: %s", req.Name)
	}
	*rep = tn.Add(req.Delta)
	return nil
}

// Snapshot writes a top-down PNG of the current state to the given path.
func (s *Service) Snapshot(req string, rep *string) error {
	if err := overhead.Save(s.bridge.Snapshot(), req); err != nil {
		return err
	}
	*rep = req
	return nil
}

// Server serves the RPC service over websocket and raw TCP.
type Server struct {
	rpcSrv *rpc.Server
}

func NewServer(svc *Service) (*Server, error) {
	rs := rpc.NewServer()
	if err := rs.RegisterName("Bridge", svc); err != nil {
		return nil, err
	}
	return &Server{rpcSrv: rs}, nil
}

// ServeConn runs JSON-RPC on a single connection until it closes.
func (s *Server) ServeConn(conn io.ReadWriteCloser) {
	s.rpcSrv.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Handler returns the websocket endpoint handler.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		fmt.Println("Autopilot connected:", ws.Request().RemoteAddr)
		defer fmt.Println("Autopilot disconnected:", ws.Request().RemoteAddr)
		s.ServeConn(ws)
	})
}

// ListenAndServe serves the websocket endpoint on /ws until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())
	srv := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	fmt.Println("Autopilot link listening:", addr)
	err = srv.Serve(l)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ServeListener accepts raw TCP connections and runs JSON-RPC on each.
func (s *Server) ServeListener(ctx context.Context, l net.Listener) {
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() == nil {
				fmt.Println("Accept failed:", err)
			}
			return
		}
		fmt.Println("Autopilot connected:", conn.RemoteAddr())
		go s.ServeConn(conn)
	}
}
