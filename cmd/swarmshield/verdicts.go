package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/obutuz/swarmshield-sub004/pkg/cli"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/export"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/retention"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

var verdictsFlags struct {
	workspace string
	agent     string
	event     string
	action    string
	since     string
	until     string
	limit     int
	offset    int
	order     string
	output    string
}

var verdictsCmd = &cobra.Command{
	Use:   "verdicts",
	Short: "Inspect the verdict audit trail",
}

var verdictsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List recorded verdicts",
	Long: `List verdict records from the configured evidence store.

Examples:
  # Last 20 blocks in a workspace
  swarmshield verdicts query --workspace ws-1 --action block --limit 20

  # Export a day of verdicts as CSV
  swarmshield verdicts query --since 2026-03-01T00:00:00Z --until 2026-03-02T00:00:00Z -o csv`,
	RunE: runVerdictsQuery,
}

var verdictsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy once",
	RunE:  runVerdictsPrune,
}

func init() {
	rootCmd.AddCommand(verdictsCmd)
	verdictsCmd.AddCommand(verdictsQueryCmd, verdictsPruneCmd)

	f := verdictsQueryCmd.Flags()
	f.StringVarP(&verdictsFlags.workspace, "workspace", "w", "", "workspace id")
	f.StringVar(&verdictsFlags.agent, "agent", "", "agent id")
	f.StringVar(&verdictsFlags.event, "event", "", "event id")
	f.StringVar(&verdictsFlags.action, "action", "", "verdict action: allow, flag, block")
	f.StringVar(&verdictsFlags.since, "since", "", "records at or after this RFC3339 time")
	f.StringVar(&verdictsFlags.until, "until", "", "records before this RFC3339 time")
	f.IntVar(&verdictsFlags.limit, "limit", 50, "maximum records")
	f.IntVar(&verdictsFlags.offset, "offset", 0, "records to skip")
	f.StringVar(&verdictsFlags.order, "order", "desc", "sort order by record time: asc, desc")
	f.StringVarP(&verdictsFlags.output, "output", "o", "text", "output format: text, json, csv")
}

// buildVerdictQuery converts the query flags.
func buildVerdictQuery() (*evidence.Query, error) {
	q := &evidence.Query{
		WorkspaceID: verdictsFlags.workspace,
		AgentID:     verdictsFlags.agent,
		EventID:     verdictsFlags.event,
		Limit:       verdictsFlags.limit,
		Offset:      verdictsFlags.offset,
		SortOrder:   verdictsFlags.order,
	}
	if verdictsFlags.action != "" {
		action, err := policy.ParseAction(verdictsFlags.action)
		if err != nil {
			return nil, cli.NewConfigError("action", err.Error())
		}
		q.Action = action
	}
	for name, v := range map[string]struct {
		value string
		dst   **time.Time
	}{
		"since": {verdictsFlags.since, &q.StartTime},
		"until": {verdictsFlags.until, &q.EndTime},
	} {
		if v.value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v.value)
		if err != nil {
			return nil, cli.NewConfigError(name, "must be an RFC3339 time")
		}
		*v.dst = &t
	}
	return q, nil
}

func runVerdictsQuery(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(verdictsFlags.output)
	if err != nil {
		return err
	}
	q, err := buildVerdictQuery()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openVerdictStorage(&cfg.Evidence)
	if err != nil {
		return cli.NewCommandError("verdicts query", err)
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("verdicts query", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		writeVerdictLines(out, records)
		return nil
	}
	exp, err := export.ForFormat(string(format), cli.IsTerminal(out))
	if err != nil {
		return err
	}
	return exp.Export(cmd.Context(), records, out)
}

func writeVerdictLines(w io.Writer, records []*evidence.VerdictRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No verdicts found")
		return
	}
	for _, r := range records {
		agent := r.AgentID
		if agent == "" {
			agent = "-"
		}
		line := fmt.Sprintf("%s  %-5s  %s  %s  %s", r.RecordedAt.UTC().Format(time.RFC3339), strings.ToUpper(string(r.Action)), r.WorkspaceID, agent, r.ID)
		if ids := r.RuleIDs(); len(ids) > 0 {
			line += "  rules=" + strings.Join(ids, ",")
		}
		fmt.Fprintln(w, line)
	}
}

func runVerdictsPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	store, err := openVerdictStorage(&cfg.Evidence)
	if err != nil {
		return cli.NewCommandError("verdicts prune", err)
	}
	defer store.Close()

	deleted, err := retention.NewPruner(store, retentionConfig(&cfg.Evidence.Retention), logger).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("verdicts prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d verdict records\n", deleted)
	return nil
}
