package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-peer-go/internal/logctx"
	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcperr"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

var _ sessions.Session = (*session)(nil)

// session is the engine's view of the connection as handed to capability
// code. Fields negotiated during initialize are guarded by mu.
type session struct {
	eng    *Engine
	id     string
	userID string

	mu              sync.RWMutex
	protocolVersion string
	clientInfo      sessions.ClientInfo
	clientCaps      mcp.ClientCapabilities
	logLevel        mcp.LoggingLevel
	initialized     bool
	rootsListeners  []rootsListener
}

type rootsListener struct {
	ctx context.Context
	fn  sessions.RootsListChangedListener
}

func newSession(e *Engine, id string) *session {
	return &session{eng: e, id: id, logLevel: mcp.LoggingLevelInfo}
}

func (s *session) SessionID() string { return s.id }

func (s *session) UserID() string { return s.userID }

func (s *session) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

func (s *session) ClientInfo() sessions.ClientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

func (s *session) GetSamplingCapability() (sessions.SamplingCapability, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clientCaps.Sampling == nil {
		return nil, false
	}
	return &samplingCapability{eng: s.eng}, true
}

func (s *session) GetRootsCapability() (sessions.RootsCapability, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clientCaps.Roots == nil {
		return nil, false
	}
	return &rootsCapability{sess: s, listChanged: s.clientCaps.Roots.ListChanged}, true
}

func (s *session) Log(ctx context.Context, level mcp.LoggingLevel, logger string, data any) error {
	if !mcp.IsValidLoggingLevel(level) {
		return &mcperr.InvalidParamsError{Field: "level", Reason: "unknown logging level " + string(level)}
	}
	s.mu.RLock()
	threshold := s.logLevel
	s.mu.RUnlock()
	if !level.AtLeast(threshold) {
		return nil
	}
	return s.eng.Notify(ctx, string(mcp.LoggingMessageNotificationMethod), &mcp.LoggingMessageNotification{
		Level:  level,
		Data:   data,
		Logger: logger,
	})
}

func (s *session) setLogLevel(level mcp.LoggingLevel) {
	s.mu.Lock()
	s.logLevel = level
	s.mu.Unlock()
}

// negotiate records what the client reported in initialize.
func (s *session) negotiate(version string, req *mcp.InitializeRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocolVersion = version
	s.clientInfo = sessions.ClientInfo{Name: req.ClientInfo.Name, Version: req.ClientInfo.Version}
	s.clientCaps = req.Capabilities
}

func (s *session) markInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

func (s *session) isInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *session) addRootsListener(ctx context.Context, fn sessions.RootsListChangedListener) {
	s.mu.Lock()
	s.rootsListeners = append(s.rootsListeners, rootsListener{ctx: ctx, fn: fn})
	s.mu.Unlock()
}

// fireRootsChanged runs every live listener. Listeners whose context has
// ended are dropped.
func (s *session) fireRootsChanged(ctx context.Context) {
	s.mu.Lock()
	live := s.rootsListeners[:0]
	for _, l := range s.rootsListeners {
		if l.ctx.Err() == nil {
			live = append(live, l)
		}
	}
	s.rootsListeners = live
	listeners := append([]rootsListener(nil), live...)
	s.mu.Unlock()

	for _, l := range listeners {
		if err := l.fn(l.ctx); err != nil {
			s.eng.log.WarnContext(ctx, "engine.roots_listener.err", slog.String("err", err.Error()))
		}
	}
}

// withLogData attaches the session log group to ctx.
func (s *session) withLogData(ctx context.Context) context.Context {
	return logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:  s.id,
		UserID:     s.userID,
		ClientName: s.ClientInfo().Name,
	})
}
