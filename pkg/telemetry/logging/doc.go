// Package logging builds the process *slog.Logger.
//
// New returns a standard *slog.Logger whose handler
//
//   - adds request_id, workspace_id, agent_id and event_id from the context
//     when logging with the *Context methods,
//   - masks the values of sensitive keys (tokens, passwords, api keys, and
//     event content),
//   - optionally rewrites secrets found inside string values (RedactPII).
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithWorkspaceID(ctx, "ws-1")
//	logger.InfoContext(ctx, "event evaluated", "action", "block")
package logging
