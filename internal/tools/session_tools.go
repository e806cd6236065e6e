package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/mkonda/probemux/internal/errors"
)

// StartSession validates the worker argument vector and launches a
// supervised worker session
func (t *SupervisorTools) StartSession(ctx context.Context, req *mcp.CallToolRequest, args StartSessionArgs) (*mcp.CallToolResult, StartSessionResult, error) {
	if err := validateClient(args.Client); err != nil {
		return createErrorResult(fmt.Sprintf("Invalid client: %v", err)), StartSessionResult{}, nil
	}
	if len(args.Argv) == 0 {
		return createErrorResult("Argument vector cannot be empty. Provide the worker arguments, e.g. [\"ssh\", \"--target\", \"10.0.0.1:22\"]."), StartSessionResult{}, nil
	}

	sessionID, err := t.registry.Create(args.Client, args.Argv)
	if err != nil {
		t.logger.Error("Failed to start session", err, map[string]any{
			"client": args.Client,
		})
		switch apperrors.GetCode(err) {
		case apperrors.ErrCodeValidationFailed:
			return createErrorResult(fmt.Sprintf("Worker arguments rejected: %v", err)), StartSessionResult{}, nil
		case apperrors.ErrCodeSessionLimitReached:
			return createErrorResult(fmt.Sprintf("Session limit reached: %v. Stop a running session first.", err)), StartSessionResult{}, nil
		default:
			return createErrorResult(fmt.Sprintf("Failed to start session: %v", err)), StartSessionResult{}, nil
		}
	}

	snap, _ := t.registry.Get(sessionID)
	result := StartSessionResult{
		SessionID: sessionID,
		Client:    args.Client,
		ProcessID: snap.ProcessID,
		StartedAt: snap.StartedAt.Format(time.RFC3339),
		Message:   fmt.Sprintf("Session %s started as process %d", sessionID, snap.ProcessID),
	}

	return createJSONResult(result), result, nil
}

// StopSession dispatches a graceful termination signal to a session's
// worker without waiting for it to exit
func (t *SupervisorTools) StopSession(ctx context.Context, req *mcp.CallToolRequest, args StopSessionArgs) (*mcp.CallToolResult, StopSessionResult, error) {
	if err := validateSessionID(args.SessionID); err != nil {
		return createErrorResult(fmt.Sprintf("Invalid session ID: %v", err)), StopSessionResult{}, nil
	}

	if err := t.registry.Stop(args.SessionID); err != nil {
		if apperrors.Is(err, apperrors.ErrCodeSessionNotFound) {
			return createErrorResult(fmt.Sprintf("Session not found: %s", args.SessionID)), StopSessionResult{}, nil
		}
		t.logger.Error("Failed to stop session", err, map[string]any{
			"session_id": args.SessionID,
		})
		return createErrorResult(fmt.Sprintf("Failed to signal session: %v", err)), StopSessionResult{}, nil
	}

	result := StopSessionResult{
		SessionID: args.SessionID,
		Message:   fmt.Sprintf("Termination signal sent to session %s; exit is recorded asynchronously", args.SessionID),
	}

	return createJSONResult(result), result, nil
}

// GetSession returns a point-in-time snapshot of one session
func (t *SupervisorTools) GetSession(ctx context.Context, req *mcp.CallToolRequest, args GetSessionArgs) (*mcp.CallToolResult, GetSessionResult, error) {
	if err := validateSessionID(args.SessionID); err != nil {
		return createErrorResult(fmt.Sprintf("Invalid session ID: %v", err)), GetSessionResult{}, nil
	}

	snap, ok := t.registry.Get(args.SessionID)
	if !ok {
		return createErrorResult(fmt.Sprintf("Session not found: %s", args.SessionID)), GetSessionResult{}, nil
	}

	result := GetSessionResult{Session: snap}
	return createJSONResult(result), result, nil
}

// ListSessions returns snapshots of all sessions
func (t *SupervisorTools) ListSessions(ctx context.Context, req *mcp.CallToolRequest, args ListSessionsArgs) (*mcp.CallToolResult, ListSessionsResult, error) {
	snapshots := t.registry.List()

	result := ListSessionsResult{
		Sessions: snapshots,
		Count:    len(snapshots),
		Running:  t.registry.Running(),
	}

	return createJSONResult(result), result, nil
}
