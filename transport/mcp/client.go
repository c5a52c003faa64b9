package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/vinecheck/game/service"
)

const (
	// requestTimeout bounds single level calls
	requestTimeout = 30 * time.Second
	// batchTimeout bounds validate_all, which walks the whole directory
	batchTimeout = 10 * time.Minute
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Vine Level Validator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Vine Level Validator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

PURPOSE:
Certify vine puzzle levels before they ship. A level is a grid covered by vines;
each vine has a head direction, an ordered path (head first) and a list of vines
it blocks. A level is VALID when it has no violations. Warnings are advisory.

AVAILABLE TOOLS:
- validate_document: Validate a level JSON document you provide (nothing is stored)
- validate_level: Validate a stored level file, optionally writing the metrics back
- validate_all: Validate every level file in the levels directory
- list_levels: List stored level files
- list_tiers: Show the difficulty tiers, palette and direction bands

NOTE: validate_level only writes when persist is true; validate_all writes unless dry_run is true.`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "validate_document",
		Description: "Validate a level document and report violations, warnings and metrics",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document": map[string]interface{}{
					"type":        "string",
					"description": "The level as a JSON string",
				},
			},
			Required: []string{"document"},
		},
	}, c.handleValidateDocument)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "validate_level",
		Description: "Validate a stored level file by name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Level file name relative to the levels directory, e.g. level_12 or module_2/level_3.json",
				},
				"persist": map[string]interface{}{
					"type":        "boolean",
					"description": "Write the computed metrics back into the file",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleValidateLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "validate_all",
		Description: "Validate every level file and summarize the results",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workers": map[string]interface{}{
					"type":        "string",
					"description": "Parallel workers: a number, \"half\" (default) or \"full\"",
				},
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "Validate without writing metrics back",
				},
				"backup": map[string]interface{}{
					"type":        "boolean",
					"description": "Back up the level files before writing",
				},
			},
		},
	}, c.handleValidateAll)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List the stored level files",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_tiers",
		Description: "Show the difficulty tiers and the rules levels are validated against",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTiers)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall makes an HTTP request to the REST API
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		reqBody = bytes.NewReader(b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// arguments returns the tool arguments as a map
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// levelPath escapes a level name for use in a URL path, keeping directories
func levelPath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Tool handlers

func (c *Client) handleValidateDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var body json.RawMessage
	switch doc := args["document"].(type) {
	case string:
		if strings.TrimSpace(doc) == "" {
			return mcp.NewToolResultError("document is required"), nil
		}
		body = json.RawMessage(doc)
	case map[string]interface{}:
		data, err := json.Marshal(doc)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		body = data
	default:
		return mcp.NewToolResultError("document is required"), nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var result documentResult
	if err := c.apiCall(ctx, "POST", "/api/validate", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatDocumentResult(&result)), nil
}

func (c *Client) handleValidateLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	persist, _ := args["persist"].(bool)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var report service.FileReport
	var err error
	if persist {
		err = c.apiCall(ctx, "POST", "/api/levels/"+levelPath(name)+"/validate?persist=true", nil, &report)
	} else {
		err = c.apiCall(ctx, "GET", "/api/levels/"+levelPath(name), nil, &report)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFileReport(&report)), nil
}

func (c *Client) handleValidateAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]interface{}{}
	switch w := args["workers"].(type) {
	case string:
		if w != "" {
			body["workers"] = w
		}
	case float64:
		body["workers"] = strconv.Itoa(int(w))
	}
	if dryRun, _ := args["dry_run"].(bool); dryRun {
		body["dry_run"] = true
	}
	if backup, _ := args["backup"].(bool); backup {
		body["backup"] = true
	}

	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	var summary service.BatchSummary
	if err := c.apiCall(ctx, "POST", "/api/batch", body, &summary); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBatchSummary(&summary)), nil
}

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var response struct {
		Count  int                  `json:"count"`
		Levels []*service.LevelInfo `json:"levels"`
	}
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLevels(response.Levels)), nil
}

func (c *Client) handleListTiers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var table service.TierTable
	if err := c.apiCall(ctx, "GET", "/api/tiers", nil, &table); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTierTable(&table)), nil
}

// documentResult mirrors the POST /api/validate response
type documentResult struct {
	Valid            bool                `json:"valid"`
	Violations       []string            `json:"violations"`
	Warnings         []string            `json:"warnings"`
	ClearableAtStart []string            `json:"clearable_at_start"`
	Depths           map[string]int      `json:"depths"`
	Metrics          documentResultStats `json:"metrics"`
}

type documentResultStats struct {
	OccupancyPercent  *float64            `json:"occupancy_percent"`
	ColorDistribution map[string]float64  `json:"color_distribution"`
	BlockingGraph     map[string][]string `json:"blocking_graph"`
	BlockingDepth     int                 `json:"blocking_depth"`
}

// Formatting helpers

func verdict(valid bool) string {
	if valid {
		return "VALID"
	}
	return "INVALID"
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

func writeMetrics(b *strings.Builder, occupancy *float64, colors map[string]float64, depth int) {
	if occupancy != nil {
		fmt.Fprintf(b, "Occupancy: %.1f%%\n", *occupancy)
	}
	if len(colors) > 0 {
		names := make([]string, 0, len(colors))
		for name := range colors {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s %.1f%%", name, colors[name]*100))
		}
		fmt.Fprintf(b, "Colors: %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(b, "Blocking depth: %d\n", depth)
}

func formatDocumentResult(r *documentResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Result: %s\n", verdict(r.Valid))
	writeMetrics(&b, r.Metrics.OccupancyPercent, r.Metrics.ColorDistribution, r.Metrics.BlockingDepth)
	if len(r.ClearableAtStart) > 0 {
		fmt.Fprintf(&b, "Clearable at start: %s\n", strings.Join(r.ClearableAtStart, ", "))
	}
	writeList(&b, "Violations", r.Violations)
	writeList(&b, "Warnings", r.Warnings)
	return b.String()
}

func formatFileReport(r *service.FileReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Level: %s\n", r.Name)
	fmt.Fprintf(&b, "Result: %s\n", verdict(r.Valid))
	if r.Metrics != nil {
		writeMetrics(&b, r.Metrics.OccupancyPercent, r.Metrics.ColorDistribution, r.Metrics.BlockingDepth)
	}
	if len(r.ClearableAtStart) > 0 {
		fmt.Fprintf(&b, "Clearable at start: %s\n", strings.Join(r.ClearableAtStart, ", "))
	}
	if r.Persisted {
		b.WriteString("Metrics written back to the level file\n")
	}
	writeList(&b, "Violations", r.Violations)
	writeList(&b, "Warnings", r.Warnings)
	return b.String()
}

func formatBatchSummary(s *service.BatchSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch %s: %d/%d files valid\n", s.ID, s.FilesValid, s.FilesChecked)
	fmt.Fprintf(&b, "Violations: %d, warnings: %d\n", s.TotalViolations, s.TotalWarnings)
	if s.BackupDir != "" {
		fmt.Fprintf(&b, "Backup: %s\n", s.BackupDir)
	}
	if s.Cancelled {
		b.WriteString("Batch was cancelled before every file was checked\n")
	}

	var invalid []string
	for _, f := range s.Files {
		if f.Valid {
			continue
		}
		first := ""
		if len(f.Violations) > 0 {
			first = ": " + f.Violations[0]
		}
		more := ""
		if len(f.Violations) > 1 {
			more = fmt.Sprintf(" (+%d more)", len(f.Violations)-1)
		}
		invalid = append(invalid, f.Name+first+more)
	}
	writeList(&b, "Invalid files", invalid)
	writeList(&b, "Errors", s.Errors)
	return b.String()
}

func formatLevels(levels []*service.LevelInfo) string {
	if len(levels) == 0 {
		return "No level files found"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Levels (%d):\n", len(levels))
	for _, l := range levels {
		if l.Error != "" {
			fmt.Fprintf(&b, "  - %s: unreadable (%s)\n", l.Name, l.Error)
			continue
		}
		difficulty := l.Difficulty
		if difficulty == "" {
			difficulty = "?"
		}
		fmt.Fprintf(&b, "  - %s: id=%s %q %s grid=%s vines=%d\n",
			l.Name, l.ID, l.Title, difficulty, l.GridSize, l.VineCount)
	}
	return b.String()
}

func formatTierTable(t *service.TierTable) string {
	var b strings.Builder
	b.WriteString("Tiers:\n")
	for _, tier := range t.Tiers {
		fmt.Fprintf(&b, "  - %s: vines %s, avg length %s, colors %s, blocking depth ≤%d\n",
			tier.Name, tier.VineCount, tier.AvgLength, tier.ColorCount, tier.MaxBlockingDepth)
	}

	if len(t.Palette) > 0 {
		names := make([]string, 0, len(t.Palette))
		for _, c := range t.Palette {
			names = append(names, c.Name)
		}
		fmt.Fprintf(&b, "Palette: %s\n", strings.Join(names, ", "))
	}

	if len(t.Directions) > 0 {
		dirs := make([]string, 0, len(t.Directions))
		for d := range t.Directions {
			dirs = append(dirs, d)
		}
		sort.Strings(dirs)
		parts := make([]string, 0, len(dirs))
		for _, d := range dirs {
			band := t.Directions[d]
			parts = append(parts, fmt.Sprintf("%s %.0f%%-%.0f%%", d, band.Min*100, band.Max*100))
		}
		fmt.Fprintf(&b, "Head directions: %s\n", strings.Join(parts, ", "))
	}

	fmt.Fprintf(&b, "Max color share: %.0f%%\n", t.MaxColorShare*100)
	return b.String()
}
