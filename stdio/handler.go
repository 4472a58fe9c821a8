package stdio

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/ggoodman/mcp-peer-go/mcpservice"
	"github.com/ggoodman/mcp-peer-go/peer"
	"github.com/ggoodman/mcp-peer-go/transport"
)

// Handler serves one MCP server over a pair of byte streams.
type Handler struct {
	srv mcpservice.ServerCapabilities

	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	userProvider UserProvider
	peerOpts     []peer.Option
}

// NewHandler creates a Handler for srv reading from os.Stdin and writing to
// os.Stdout unless overridden.
func NewHandler(srv mcpservice.ServerCapabilities, opts ...Option) *Handler {
	h := &Handler{
		srv:          srv,
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.Default(),
		userProvider: OSUserProvider{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve runs the connection until the input ends or ctx is done. A clean end
// of input returns nil.
func (h *Handler) Serve(ctx context.Context) error {
	userID, err := h.userProvider.CurrentUserID()
	if err != nil {
		h.l.WarnContext(ctx, "stdio.user.err", slog.String("err", err.Error()))
	}

	t := transport.NewStream(h.r, h.w, transport.WithStreamLogger(h.l))
	opts := append([]peer.Option{
		peer.WithServer(h.srv),
		peer.WithLogger(h.l),
		peer.WithUserID(userID),
	}, h.peerOpts...)

	p := peer.New(t, opts...)
	h.l.InfoContext(ctx, "stdio.serve.start", slog.String("user_id", userID))
	return p.Serve(ctx)
}
