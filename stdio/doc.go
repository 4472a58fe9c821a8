// Package stdio serves an MCP server over stdin/stdout. It is intended for
// servers launched as subprocesses by a local client.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : OS user (lightweight implicit principal)
//	Sessions         : one per process, held in memory
//	Framing          : newline-delimited JSON-RPC 2.0
//
// Options allow supplying alternate io.Reader / io.Writer, a custom logger or
// extra peer options.
//
// Example:
//
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcpservice.StaticServerInfo("my-stdio-server", "0.1.0")),
//	    // mcpservice.WithToolsCapability(...), etc.
//	)
//	h := stdio.NewHandler(srv)
//	if err := h.Serve(context.Background()); err != nil { log.Fatal(err) }
package stdio
