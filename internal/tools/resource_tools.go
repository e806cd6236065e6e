package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetResourceStatus reports process resource usage and leak detection results
func (t *SupervisorTools) GetResourceStatus(ctx context.Context, req *mcp.CallToolRequest, args ResourceStatusArgs) (*mcp.CallToolResult, ResourceStatusResult, error) {
	if t.monitor == nil {
		return createErrorResult("Resource monitoring is disabled in configuration."), ResourceStatusResult{}, nil
	}

	result := ResourceStatusResult{
		Current: t.monitor.Current(args.ForceGC),
		Leaks:   t.monitor.CheckLeaks(args.LeakThreshold),
	}
	if args.IncludeHistory {
		result.History = t.monitor.History()
	}

	return createJSONResult(result), result, nil
}
