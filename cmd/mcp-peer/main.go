// Command mcp-peer runs a demo MCP server over stdio or drives an MCP server
// started as a subprocess.
package main

import (
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
