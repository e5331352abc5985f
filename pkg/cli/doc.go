/*
Package cli provides command-line helpers for the swarmshield command.

Output Formatting:

Commands render results as text, JSON or CSV. JSON is indented with
tidwall/pretty and colorized when stdout is a terminal:

	format, err := cli.ParseOutputFormat(flagOutput)
	if err != nil {
		return err
	}
	formatter := cli.NewFormatter(format, os.Stdout)
	if err := formatter.FormatTo(os.Stdout, verdict); err != nil {
		return err
	}

CSV output requires the value to implement Tabular.

Progress Reporting:

Batch evaluation reports progress and a block/flag tally on stderr when it
is a terminal:

	progress := cli.NewTerminalProgress(os.Stderr)
	progress.Start(int64(len(events)))
	for _, ev := range events {
		verdict, _ := eng.Evaluate(ctx, ev)
		progress.Record(string(verdict.Action))
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

Commands return *ExitError to set the process exit code, for example when
an evaluated event is blocked.
*/
package cli
