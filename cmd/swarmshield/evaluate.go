package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obutuz/swarmshield-sub004/pkg/cli"
	"github.com/obutuz/swarmshield-sub004/pkg/config"
	"github.com/obutuz/swarmshield-sub004/pkg/limits/counter"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/detection"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/engine"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/evaluators"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/rulestore"
)

var evaluateFlags struct {
	rules  string
	file   string
	output string
	failOn string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate events offline against rule files",
	Long: `Evaluate one or more events against YAML rule files without starting
the server. Events are read as a stream of JSON objects (one object, or
one per line).

Rate counters start empty and live only for the duration of the command.

Exit codes with --fail-on:
  2  an event reached the given action (flag or block)

Examples:
  # Evaluate a single event
  echo '{"workspace_id":"ws-1","content":"AKIA..."}' | swarmshield evaluate --rules ./rules

  # Evaluate a JSONL file, fail the build on any block
  swarmshield evaluate --rules ./rules --file events.jsonl --fail-on block

  # CSV summary
  swarmshield evaluate --file events.jsonl --output csv`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFlags.rules, "rules", "r", "", "rules file or directory (default: store.path)")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.file, "file", "f", "-", "events file, - for stdin")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.output, "output", "o", "text", "output format: text, json, csv")
	evaluateCmd.Flags().StringVar(&evaluateFlags.failOn, "fail-on", "", "exit 2 when any verdict is at least this action (flag, block)")
}

// evaluation is one evaluated event.
type evaluation struct {
	EventID     string          `json:"event_id,omitempty"`
	WorkspaceID string          `json:"workspace_id"`
	Verdict     *policy.Verdict `json:"verdict"`
}

func (e evaluation) String() string {
	id := e.EventID
	if id == "" {
		id = "-"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\t%s\t%d rules", id, e.WorkspaceID, strings.ToUpper(string(e.Verdict.Action)), e.Verdict.Evaluated)
	for _, v := range e.Verdict.Violations {
		fmt.Fprintf(&b, "\n  %s %s (%s)", v.Action, v.RuleName, v.RuleID)
	}
	return b.String()
}

type evaluations []evaluation

func (evaluations) Header() []string {
	return []string{"event_id", "workspace_id", "action", "rules_evaluated", "violated_rule_ids"}
}

func (es evaluations) Rows() [][]string {
	rows := make([][]string, 0, len(es))
	for _, e := range es {
		ids := make([]string, 0, len(e.Verdict.Violations))
		for _, v := range e.Verdict.Violations {
			ids = append(ids, v.RuleID)
		}
		rows = append(rows, []string{
			e.EventID,
			e.WorkspaceID,
			string(e.Verdict.Action),
			strconv.Itoa(e.Verdict.Evaluated),
			strings.Join(ids, ";"),
		})
	}
	return rows
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(evaluateFlags.output)
	if err != nil {
		return err
	}
	var failOn policy.Action
	if evaluateFlags.failOn != "" {
		if failOn, err = policy.ParseAction(evaluateFlags.failOn); err != nil || failOn == policy.ActionAllow {
			return cli.NewConfigError("fail-on", "must be flag or block")
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	rulesPath := evaluateFlags.rules
	if rulesPath == "" {
		rulesPath = cfg.Store.Path
	}

	events, err := readEvents(evaluateFlags.file, cmd.InOrStdin())
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	ctx := cmd.Context()
	eng, err := offlineEngine(ctx, &cfg.Engine, rulesPath, logger)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	results, err := evaluateAll(ctx, eng, events, cli.NewTerminalProgress(cmd.ErrOrStderr()))
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	if err := writeEvaluations(cmd.OutOrStdout(), format, results); err != nil {
		return err
	}

	if failOn != "" {
		for _, r := range results {
			if r.Verdict.Action.Severity() >= failOn.Severity() {
				return cli.NewExitError(2, nil)
			}
		}
	}
	return nil
}

// offlineEngine builds an engine over rule files with process-local
// counters.
func offlineEngine(ctx context.Context, cfg *config.EngineConfig, rulesPath string, logger *slog.Logger) (*engine.Engine, error) {
	backend := rulestore.NewMemoryBackend()
	cache := detection.NewCache(backend, logger, nil)
	opts := engine.StandardEvaluators(cache, counter.NewMemoryStore(), counter.NewMonotonicClock(), logger,
		evaluators.WithRegexTimeout(cfg.RegexTimeout))
	eng, err := engine.New(engineConfig(cfg), backend, logger, opts...)
	if err != nil {
		return nil, err
	}
	if err := rulestore.NewDirectorySync(rulesPath, backend, logger, cache.Refresh, eng.Reload).Sync(ctx); err != nil {
		return nil, fmt.Errorf("failed to load rules from %s: %w", rulesPath, err)
	}
	return eng, nil
}

func evaluateAll(ctx context.Context, eng *engine.Engine, events []*policy.Event, progress cli.ProgressReporter) (evaluations, error) {
	progress.Start(int64(len(events)))
	results := make(evaluations, 0, len(events))
	for i, ev := range events {
		verdict, err := eng.Evaluate(ctx, ev)
		if err != nil {
			progress.Error(err)
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}
		results = append(results, evaluation{EventID: ev.ID, WorkspaceID: ev.WorkspaceID, Verdict: verdict})
		progress.Record(string(verdict.Action))
	}
	progress.Finish()
	return results, nil
}

func writeEvaluations(w io.Writer, format cli.OutputFormat, results evaluations) error {
	formatter := cli.NewFormatter(format, w)
	if format != cli.FormatText {
		return formatter.FormatTo(w, results)
	}
	for _, r := range results {
		if err := formatter.FormatTo(w, r); err != nil {
			return err
		}
	}
	return nil
}

// readEvents decodes a stream of JSON event objects from path, or from
// stdin when path is "-".
func readEvents(path string, stdin io.Reader) ([]*policy.Event, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open events: %w", err)
		}
		defer f.Close()
		r = f
	}

	var events []*policy.Event
	dec := json.NewDecoder(r)
	for {
		var ev policy.Event
		err := dec.Decode(&ev)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", len(events)+1, err)
		}
		events = append(events, &ev)
	}
	if len(events) == 0 {
		return nil, errors.New("no events to evaluate")
	}
	return events, nil
}
