// Command demo-mcp runs the demo MCP server over stdio. Point a
// tool-server config entry at this binary to exercise the external tool
// integration locally.
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/sidekick-dev/sidekick/pkg/mcpserver/demo"
)

func main() {
	if err := server.ServeStdio(demo.NewServer()); err != nil {
		log.Fatal(err)
	}
}
