package mcpservice

import (
	"context"
	"log/slog"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/mcperr"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

// NewSlogLevelVarLogging returns a LoggingCapability that maps MCP LoggingLevel
// to a provided slog.LevelVar. This adjusts process-wide slog level when used
// with handlers created from the same LevelVar.
func NewSlogLevelVarLogging(lv *slog.LevelVar) *SlogLevelVarLogging {
	return &SlogLevelVarLogging{lv: lv}
}

// SlogLevelVarLogging is the LoggingCapability returned by NewSlogLevelVarLogging.
type SlogLevelVarLogging struct{ lv *slog.LevelVar }

var (
	_ LoggingCapability         = (*SlogLevelVarLogging)(nil)
	_ LoggingCapabilityProvider = (*SlogLevelVarLogging)(nil)
)

func (l *SlogLevelVarLogging) ProvideLogging(context.Context, sessions.Session) (LoggingCapability, bool, error) {
	if l == nil {
		return nil, false, nil
	}
	return l, true, nil
}

func (l *SlogLevelVarLogging) SetLevel(_ context.Context, _ sessions.Session, level mcp.LoggingLevel) error {
	slogLevel, ok := SlogLevel(level)
	if !ok {
		return ErrInvalidLoggingLevel
	}
	if l.lv != nil {
		l.lv.Set(slogLevel)
	}
	return nil
}

// SlogLevel maps an MCP logging level onto the nearest slog level. Notice
// maps to info; critical and above map to error.
func SlogLevel(level mcp.LoggingLevel) (slog.Level, bool) {
	switch level {
	case mcp.LoggingLevelDebug:
		return slog.LevelDebug, true
	case mcp.LoggingLevelInfo, mcp.LoggingLevelNotice:
		return slog.LevelInfo, true
	case mcp.LoggingLevelWarning:
		return slog.LevelWarn, true
	case mcp.LoggingLevelError, mcp.LoggingLevelCritical, mcp.LoggingLevelAlert, mcp.LoggingLevelEmergency:
		return slog.LevelError, true
	default:
		return 0, false
	}
}

// ErrInvalidLoggingLevel indicates the provided level is not one of the
// protocol-defined LoggingLevel values.
var ErrInvalidLoggingLevel error = &mcperr.InvalidParamsError{Field: "level", Reason: "invalid logging level"}
