// Package mcpservice provides the building blocks an MCP peer exposes to the
// other side of a connection: the capability Registry holding tools and
// prompts, typed tool and prompt constructors, and the ServerCapabilities and
// ClientCapabilities surfaces the engine consults while dispatching.
//
// Quick start:
//
//	type ReverseArgs struct {
//	    S string `json:"s" jsonschema:"description=Text to reverse"`
//	}
//
//	reg := mcpservice.NewRegistry()
//	_ = reg.RegisterTools(mcpservice.NewTool[ReverseArgs]("reverseString",
//	    func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ReverseArgs]) error {
//	        return w.AppendText(reverse(r.Args().S))
//	    },
//	    mcpservice.WithToolDescription("Reverse a string"),
//	))
//
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcpservice.StaticServerInfo("example", "1.0.0")),
//	    mcpservice.WithToolsCapability(reg.Tools()),
//	    mcpservice.WithPromptsCapability(reg.Prompts()),
//	)
//
// Providers return (value, ok, error). ok == false means the capability is
// absent; an empty value with ok == true is still advertised.
package mcpservice
