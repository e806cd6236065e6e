package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mkonda/probemux/internal/store"
)

// SearchFindings searches the findings index across sessions
func (t *SupervisorTools) SearchFindings(ctx context.Context, req *mcp.CallToolRequest, args SearchFindingsArgs) (*mcp.CallToolResult, SearchFindingsResult, error) {
	if t.index == nil {
		return createErrorResult("Findings index is disabled. Enable the store in configuration to search findings."), SearchFindingsResult{}, nil
	}

	if args.SessionID != "" {
		if err := validateSessionID(args.SessionID); err != nil {
			return createErrorResult(fmt.Sprintf("Invalid session ID: %v", err)), SearchFindingsResult{}, nil
		}
	}

	query := store.FindingQuery{
		SessionID: args.SessionID,
		Client:    args.Client,
		Plugin:    args.Plugin,
		Target:    args.Target,
		Data:      args.Data,
		Limit:     args.Limit,
	}

	if args.StartTime != "" {
		since, err := time.Parse(time.RFC3339, args.StartTime)
		if err != nil {
			return createErrorResult(fmt.Sprintf("Invalid start_time: %v. Use RFC 3339, e.g. 2024-01-01T00:00:00Z.", err)), SearchFindingsResult{}, nil
		}
		query.Since = since
	}
	if args.EndTime != "" {
		until, err := time.Parse(time.RFC3339, args.EndTime)
		if err != nil {
			return createErrorResult(fmt.Sprintf("Invalid end_time: %v. Use RFC 3339, e.g. 2024-01-01T00:00:00Z.", err)), SearchFindingsResult{}, nil
		}
		query.Until = until
	}

	findings, err := t.index.SearchFindings(query)
	if err != nil {
		t.logger.Error("Findings search failed", err, map[string]any{
			"query": query.String(),
		})
		return createErrorResult(fmt.Sprintf("Search failed: %v", err)), SearchFindingsResult{}, nil
	}

	result := SearchFindingsResult{
		Findings: findings,
		Count:    len(findings),
	}

	return createJSONResult(result), result, nil
}
