// Package mcpserver exposes health checks, recommendations and fixes as
// Model Context Protocol tools over stdio.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/ppiankov/pghealth/internal/fix"
	"github.com/ppiankov/pghealth/internal/models"
)

// Tool names.
const (
	ToolCheck   = "pghealth_check"
	ToolSuggest = "pghealth_suggest"
	ToolFix     = "pghealth_fix"
)

// Inspector runs a full health check.
type Inspector interface {
	Inspect(ctx context.Context) (*models.Report, error)
}

// Advisor produces ranked recommendations.
type Advisor interface {
	Recommend(ctx context.Context) ([]models.Recommendation, error)
}

// Fixer previews or applies one fix category.
type Fixer interface {
	Fix(ctx context.Context, category models.FixCategory, opts fix.Options) (*models.FixBatch, error)
}

// Dependencies are the services behind the tools.
type Dependencies struct {
	Inspector Inspector
	Advisor   Advisor
	Fixer     Fixer
	Logger    zerolog.Logger
}

// New builds an MCP server with the check, suggest and fix tools registered.
func New(deps Dependencies, version string) *mcp.Server {
	t := &tools{deps: deps}
	server := mcp.NewServer(&mcp.Implementation{Name: "pghealth", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolCheck,
		Description: "Run every PostgreSQL health check and return the findings, overall status, largest tables and unused indexes.",
	}, t.check)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSuggest,
		Description: "Analyze the database and return recommendations grouped by priority, with SQL where one applies.",
	}, t.suggest)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolFix,
		Description: "Preview or apply safe maintenance: drop unused indexes, VACUUM or ANALYZE. Runs as a dry run unless execute is true.",
	}, t.fix)

	return server
}

// Run serves the tools on stdin/stdout until ctx ends or the client disconnects.
func Run(ctx context.Context, deps Dependencies, version string) error {
	deps.Logger.Info().Str("version", version).Msg("mcp server listening on stdio")
	return New(deps, version).Run(ctx, &mcp.StdioTransport{})
}
