// Package mcp contains protocol data types and constants shared by the
// engine, capability implementations and clients. It mirrors the wire
// representation specified by the Model Context Protocol while keeping the
// surface Go-friendly (exported structs with json tags, string constants for
// method names and enumerations, helper validation functions).
//
// The package is free of transport logic: the engine and transports import
// these types but implement their own framing and dispatch.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod).
//
// # Validation
//
// Request parameter types whose members are required implement
// Validate() error, returning *mcperr.MissingFieldError or
// *mcperr.InvalidParamsError. The engine calls Validate after decoding so
// that missing members surface as JSON-RPC "invalid params" errors naming
// the field.
//
// # Pagination
//
// List operations use cursor-based pagination. PaginatedRequest and
// PaginatedResult are embedded in request / result envelopes; an empty cursor
// requests the first page and an empty NextCursor marks the last page.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "hello"}},
//	}
//
// # Logging Levels
//
// LoggingLevel values mirror syslog severities. Use IsValidLoggingLevel to
// validate user-provided values and AtLeast to filter by threshold.
package mcp
