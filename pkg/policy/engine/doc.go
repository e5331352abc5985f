// Package engine provides the policy orchestrator: it evaluates an agent event
// against the enabled, applicable policy rules of the event's workspace and
// aggregates the per-rule results into one ALLOW, FLAG or BLOCK verdict.
//
// # Evaluation Flow
//
//	Event
//	   ↓
//	Rule snapshot (workspace → compiled rules, priority desc, name asc)
//	   ↓
//	For each rule whose filters apply:
//	  dispatch by rule type → evaluator → pass or violation
//	  violation → append evidence, action = most severe so far
//	   ↓
//	Verdict → recorder (audit) → deliberator (flag/block only)
//
// The final action is the most severe action among violating rules under
// allow < flag < block. Priority orders evaluation and evidence; it never
// lets a lower action override a higher one. With Config.StopOnBlock the
// loop ends at the first block violation, which cannot change the action
// but drops evidence from the rules after it.
//
// # Failure Handling
//
// Invalid rule configuration is reported once per reload and the rule never
// violates. A panicking evaluator is recovered, logged at error level and
// treated as a pass, so evaluation of the remaining rules continues.
//
// # Basic Usage
//
//	cache := detection.NewCache(store, logger, nil)
//	eng, err := engine.New(engine.DefaultConfig(), store, logger,
//	    engine.StandardEvaluators(cache, counter.Initialize(), nil, logger)...)
//	if err != nil {
//	    return err
//	}
//	if err := eng.Reload(ctx); err != nil {
//	    return err
//	}
//	verdict, err := eng.Evaluate(ctx, event)
package engine
