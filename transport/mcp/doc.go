// Package mcp provides a Model Context Protocol server for the vine level validator.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for validation and catalog operations
//   - Plain text formatting of reports for agents
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - validate_document: Validate a level JSON document supplied by the agent
//   - validate_level: Validate a stored level, optionally writing metrics back
//   - validate_all: Validate the whole levels directory
//   - list_levels: List stored level files
//   - list_tiers: Show the difficulty tiers and rule thresholds
//
// Architecture:
//
// Client is a thin proxy: every tool calls the REST API at baseURL, so the
// MCP surface and the HTTP surface always agree. API errors come back as
// tool errors rather than protocol errors.
//
// Usage:
//
//	// Stdio mode
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	response := client.GetMCPServer().HandleMessage(r.Context(), body)
package mcp
