// Package rpcserver wires internal/rpc's codec and message types to
// internal/session's role registry and internal/core's state machine,
// dispatching one JSON-RPC method per connection goroutine and fanning
// core.Update notifications back out to whichever session holds the UI
// role.
//
// Grounded on the teacher's internal/websocket hub (one read-loop goroutine
// per connection, a registry the hub consults for routing, and a writer
// goroutine per connection draining an outbound channel).
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hamr/hamrd/internal/core"
	"github.com/hamr/hamrd/internal/manifest"
	"github.com/hamr/hamrd/internal/rpc"
	"github.com/hamr/hamrd/internal/session"
)

// Server accepts connections on a listener, performs the register handshake,
// and dispatches subsequent requests to a shared Core.
type Server struct {
	core         *core.Core
	sessions     *session.Registry
	logger       *slog.Logger
	builtinDir   string
	userDir      string
	observeQuery func(time.Duration)
}

// Option configures a Server at construction.
type Option func(*Server)

// WithQueryLatencyObserver registers fn to be called with the end-to-end
// handling duration of every query_changed call, e.g. to feed a histogram.
func WithQueryLatencyObserver(fn func(time.Duration)) Option {
	return func(s *Server) { s.observeQuery = fn }
}

// New builds a Server over an already-constructed Core and session registry.
// builtinDir/userDir are used only to satisfy rescan_plugins.
func New(c *core.Core, sessions *session.Registry, builtinDir, userDir string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{core: c, sessions: sessions, logger: logger, builtinDir: builtinDir, userDir: userDir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections until ctx is cancelled or the listener errors.
func (s *Server) Serve(ctx context.Context, listener net.Listener) {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if s.logger != nil {
				s.logger.Warn("rpcserver: accept failed", "error", err)
			}
			continue
		}
		id := s.sessions.Open()
		go s.handleConn(ctx, conn, id)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, sessionID string) {
	defer conn.Close()
	defer s.sessions.Close(sessionID)

	codec := rpc.NewCodec(conn)
	var writeMu sync.Mutex
	write := func(v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = codec.WriteFrame(payload)
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.forwardUpdates(connCtx, sessionID, write)

	for {
		frame, err := codec.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && s.logger != nil {
				s.logger.Debug("rpcserver: connection closed", "session", sessionID, "error", err)
			}
			return
		}

		msg, err := rpc.ParseMessage(frame)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("rpcserver: malformed frame", "session", sessionID, "error", err)
			}
			continue
		}
		if msg.Request == nil {
			continue // responses/notifications from this peer are not expected inbound
		}

		req := msg.Request
		result, rpcErr := s.dispatch(ctx, sessionID, req)
		if req.IsNotification() {
			continue
		}

		resp := rpc.Response{JSONRPC: "2.0", ID: req.ID}
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			payload, err := json.Marshal(result)
			if err != nil {
				resp.Error = rpc.NewError(rpc.ErrInternalError, "failed to encode result")
			} else {
				resp.Result = payload
			}
		}
		write(resp)
	}
}

// forwardUpdates streams core.Update notifications to this connection while
// it holds the UI role; it exits once ctx is cancelled. Every connection runs
// this loop, but only the UI session's loop reads from the shared Fanout
// channel: a non-UI session waits without consuming updates, so none are
// taken away from the UI.
func (s *Server) forwardUpdates(ctx context.Context, sessionID string, write func(any)) {
	updates := s.core.Updates()
	for {
		if sess, ok := s.sessions.Get(sessionID); !ok || sess.Role != rpc.RoleUI {
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			write(rpc.Notification{JSONRPC: "2.0", Method: "update", Params: mustMarshal(u)})
		}
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

// dispatch routes one request to the appropriate Core method, enforcing the
// role required for that method.
func (s *Server) dispatch(ctx context.Context, sessionID string, req *rpc.Request) (any, *rpc.RPCError) {
	if req.Method == "register" {
		return s.handleRegister(sessionID, req)
	}

	requirement, known := methodRoles[req.Method]
	if !known {
		return nil, rpc.NewError(rpc.ErrMethodNotFound, "unknown method "+req.Method)
	}
	if err := s.sessions.RequireRole(sessionID, requirement...); err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) {
			return nil, rpcErr
		}
		return nil, rpc.NewError(rpc.ErrControlRequired, err.Error())
	}

	switch req.Method {
	case "launcher_opened":
		return s.core.HandleLauncherOpened(), nil

	case "launcher_closed":
		s.core.HandleLauncherClosed()
		return nil, nil

	case "query_changed":
		var params struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, rpc.NewError(rpc.ErrInvalidParams, "bad query_changed params")
		}
		start := time.Now()
		results, err := s.core.HandleQueryChanged(ctx, params.Query)
		if s.observeQuery != nil {
			s.observeQuery(time.Since(start))
		}
		if err != nil {
			return nil, rpc.NewError(rpc.ErrInternalError, err.Error())
		}
		return results, nil

	case "activate_plugin":
		var params struct {
			PluginID string `json:"plugin_id"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, rpc.NewError(rpc.ErrInvalidParams, "bad activate_plugin params")
		}
		s.core.ActivatePluginForMultistep(params.PluginID)
		return nil, nil

	case "item_selected":
		var params struct {
			ItemID string `json:"item_id"`
			Action string `json:"action"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, rpc.NewError(rpc.ErrInvalidParams, "bad item_selected params")
		}
		if err := s.core.HandleItemSelected(ctx, params.ItemID, params.Action); err != nil {
			return nil, rpc.NewError(rpc.ErrNoActivePlugin, err.Error())
		}
		return nil, nil

	case "slider_changed":
		var params struct {
			PluginID string  `json:"plugin_id"`
			ItemID   string  `json:"item_id"`
			Value    float64 `json:"value"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, rpc.NewError(rpc.ErrInvalidParams, "bad slider_changed params")
		}
		if err := s.core.HandleSliderChanged(ctx, params.PluginID, params.ItemID, params.Value); err != nil {
			return nil, rpc.NewError(rpc.ErrInternalError, err.Error())
		}
		return nil, nil

	case "switch_toggled":
		var params struct {
			PluginID string `json:"plugin_id"`
			ItemID   string `json:"item_id"`
			Value    bool   `json:"value"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, rpc.NewError(rpc.ErrInvalidParams, "bad switch_toggled params")
		}
		if err := s.core.HandleSwitchToggled(ctx, params.PluginID, params.ItemID, params.Value); err != nil {
			return nil, rpc.NewError(rpc.ErrInternalError, err.Error())
		}
		return nil, nil

	case "navigate_back":
		s.core.HandleNavigateBack()
		return nil, nil

	case "cancel":
		s.core.HandleCancel()
		return nil, nil

	case "rescan_plugins":
		diff, err := s.core.HandleRescanPlugins(s.builtinDir, s.userDir)
		if err != nil {
			return nil, rpc.NewError(rpc.ErrInternalError, err.Error())
		}
		return rescanResult(diff), nil

	case "status":
		return s.core.Snapshot(), nil
	}

	return nil, rpc.NewError(rpc.ErrMethodNotFound, "unhandled method "+req.Method)
}

func rescanResult(diff manifest.RescanDiff) any {
	added := make([]string, 0, len(diff.Added))
	for _, d := range diff.Added {
		added = append(added, d.Manifest.ID)
	}
	updated := make([]string, 0, len(diff.Updated))
	for _, d := range diff.Updated {
		updated = append(updated, d.Manifest.ID)
	}
	return struct {
		Added   []string `json:"added"`
		Removed []string `json:"removed"`
		Updated []string `json:"updated"`
	}{Added: added, Removed: diff.Removed, Updated: updated}
}

func (s *Server) handleRegister(sessionID string, req *rpc.Request) (any, *rpc.RPCError) {
	var params rpc.RegisterParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "bad register params")
	}
	sess, err := s.sessions.Register(sessionID, params.Role)
	if err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) {
			return nil, rpcErr
		}
		return nil, rpc.NewError(rpc.ErrInvalidParams, err.Error())
	}
	return rpc.RegisterResult{SessionID: sess.ID, Role: sess.Role}, nil
}

// methodRoles lists every method besides "register" and the session role(s)
// permitted to call it.
var methodRoles = map[string][]rpc.ClientRole{
	"launcher_opened": {rpc.RoleUI},
	"launcher_closed": {rpc.RoleUI},
	"query_changed":   {rpc.RoleUI},
	"activate_plugin": {rpc.RoleUI},
	"item_selected":   {rpc.RoleUI},
	"slider_changed":  {rpc.RoleUI},
	"switch_toggled":  {rpc.RoleUI},
	"navigate_back":   {rpc.RoleUI},
	"cancel":          {rpc.RoleUI},
	"rescan_plugins":  {rpc.RoleControl},
	"status":          {rpc.RoleUI, rpc.RoleControl},
}
