package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

// Ensure interface compliance
var _ sessions.RootsCapability = (*rootsCapability)(nil)

type rootsCapability struct {
	sess        *session
	listChanged bool
}

func (r *rootsCapability) ListRoots(ctx context.Context) (*mcp.ListRootsResult, error) {
	raw, err := r.sess.eng.Call(ctx, string(mcp.RootsListMethod), nil)
	if err != nil {
		return nil, err
	}
	var res mcp.ListRootsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode roots/list result: %w", err)
	}
	if res.Roots == nil {
		res.Roots = []mcp.Root{}
	}
	return &res, nil
}

// RegisterRootsListChangedListener reports false when the client did not
// advertise roots.listChanged. The listener stays registered until ctx ends.
func (r *rootsCapability) RegisterRootsListChangedListener(ctx context.Context, listener sessions.RootsListChangedListener) (bool, error) {
	if !r.listChanged {
		return false, nil
	}
	r.sess.addRootsListener(ctx, listener)
	return true, nil
}
