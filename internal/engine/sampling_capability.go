package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ggoodman/mcp-peer-go/mcp"
	"github.com/ggoodman/mcp-peer-go/sessions"
)

var _ sessions.SamplingCapability = (*samplingCapability)(nil)

type samplingCapability struct {
	eng *Engine
}

// CreateMessage asks the client to sample its model. Remote failures surface
// as *mcperr.RemoteError.
func (s *samplingCapability) CreateMessage(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	raw, err := s.eng.Call(ctx, string(mcp.SamplingCreateMessageMethod), req)
	if err != nil {
		return nil, err
	}
	var res mcp.CreateMessageResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode sampling/createMessage result: %w", err)
	}
	return &res, nil
}
