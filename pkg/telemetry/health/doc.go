// Package health provides the liveness and readiness probes.
//
// /health answers 200 while the process runs. /ready aggregates component
// checks:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("rules", func(ctx context.Context) error {
//		_, err := backend.ListWorkspaces(ctx)
//		return err
//	})
//	checker.RegisterOptionalCheck("redis", func(ctx context.Context) error {
//		return client.Ping(ctx).Err()
//	})
//	checker.SetReady(true) // after the first rule load
//
// A failing critical check or a closed readiness gate answers 503. A
// failing optional check reports "degraded" with 200, since evaluation
// keeps working without it.
package health
