package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/obutuz/swarmshield-sub004/pkg/cli"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/detection"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/rulestore"
)

var rulesFlags struct {
	sqlitePath string
	channel    string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage policy and detection rules",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check rule files",
	Long: `Load rule files and report every rule whose configuration would be
ignored at evaluation time: rejected rule configs, detection patterns that
do not compile, and pattern_match rules referencing unknown detection rules.

Exits 1 when any problem is found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesValidate,
}

var rulesSeedCmd = &cobra.Command{
	Use:   "seed [path]",
	Short: "Import rule files into the SQLite rule store",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesSeed,
}

var rulesInvalidateCmd = &cobra.Command{
	Use:   "invalidate <workspace-id|*>",
	Short: "Ask running servers to refresh detection rules",
	Long: `Publish a workspace id on the detection invalidation channel. Every server
subscribed to the channel refreshes that workspace's detection rules; "*"
refreshes all workspaces.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesInvalidate,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd, rulesSeedCmd, rulesInvalidateCmd)

	rulesSeedCmd.Flags().StringVar(&rulesFlags.sqlitePath, "sqlite", "", "rule database (default: store.sqlite_path)")
	rulesInvalidateCmd.Flags().StringVar(&rulesFlags.channel, "channel", "", "pub/sub channel (default: detection.invalidation.channel)")
}

// rulesPath returns the optional positional path or store.path.
func rulesPath(args []string, fallback string) string {
	if len(args) == 1 {
		return args[0]
	}
	return fallback
}

// ruleProblem is one rule that would not evaluate as written.
type ruleProblem struct {
	WorkspaceID string
	RuleID      string
	Message     string
}

// checkBundle compiles every rule in the bundle.
func checkBundle(b *rulestore.Bundle) []ruleProblem {
	var problems []ruleProblem

	known := make(map[string]bool, len(b.DetectionRules))
	for _, r := range b.DetectionRules {
		known[r.WorkspaceID+"\x00"+r.ID] = true
		if c := detection.Compile(*r); c.CompileErr != nil {
			problems = append(problems, ruleProblem{r.WorkspaceID, r.ID, "detection pattern: " + c.CompileErr.Error()})
		}
	}

	for _, r := range b.PolicyRules {
		cr := policy.CompileRule(*r)
		if cr.ConfigErr != nil {
			problems = append(problems, ruleProblem{r.WorkspaceID, r.ID, cr.ConfigErr.Error()})
			continue
		}
		if pm, ok := cr.Config.(policy.PatternMatchConfig); ok {
			for _, id := range pm.DetectionRuleIDs {
				if !known[r.WorkspaceID+"\x00"+id] {
					problems = append(problems, ruleProblem{r.WorkspaceID, r.ID, fmt.Sprintf("unknown detection rule %q", id)})
				}
			}
		}
	}
	return problems
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := rulesPath(args, cfg.Store.Path)

	bundle, err := rulestore.Load(path)
	if err != nil {
		return cli.NewCommandError("rules validate", err)
	}

	out := cmd.OutOrStdout()
	problems := checkBundle(bundle)
	printProblems(out, problems)
	if len(problems) > 0 {
		return cli.NewExitError(1, fmt.Errorf("%d rule problem(s) in %s", len(problems), path))
	}
	fmt.Fprintf(out, "✓ %d policy rules and %d detection rules in %d files are valid\n",
		len(bundle.PolicyRules), len(bundle.DetectionRules), len(bundle.Files))
	return nil
}

func printProblems(w io.Writer, problems []ruleProblem) {
	for _, p := range problems {
		fmt.Fprintf(w, "✗ %s/%s: %s\n", p.WorkspaceID, p.RuleID, p.Message)
	}
}

func runRulesSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := rulesPath(args, cfg.Store.Path)
	dbPath := rulesFlags.sqlitePath
	if dbPath == "" {
		dbPath = cfg.Store.SQLitePath
	}

	bundle, err := rulestore.Load(path)
	if err != nil {
		return cli.NewCommandError("rules seed", err)
	}
	backend, err := rulestore.NewSQLiteBackend(rulestore.SQLiteBackendConfig{DBPath: dbPath})
	if err != nil {
		return cli.NewCommandError("rules seed", err)
	}
	defer backend.Close()

	if err := rulestore.Seed(cmd.Context(), backend, bundle); err != nil {
		return cli.NewCommandError("rules seed", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d policy rules and %d detection rules into %s\n",
		len(bundle.PolicyRules), len(bundle.DetectionRules), dbPath)
	return nil
}

func runRulesInvalidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newRedisClient(&cfg.Redis)
	if client == nil {
		return cli.NewConfigError("redis.address", "required to publish invalidations")
	}
	defer client.Close()

	channel := rulesFlags.channel
	if channel == "" {
		channel = cfg.Detection.Invalidation.Channel
	}
	if err := detection.PublishInvalidation(cmd.Context(), client, channel, args[0]); err != nil {
		return cli.NewCommandError("rules invalidate", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Published invalidation for %s on %s\n", args[0], channel)
	return nil
}
