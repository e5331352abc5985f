// SwarmShield evaluates the actions reported by autonomous agents against
// workspace policy rules and returns an allow, flag or block verdict.
//
// Usage:
//
//	# Start the evaluation API
//	swarmshield run --config /etc/swarmshield/config.yaml
//
//	# Evaluate events offline against a rules directory
//	swarmshield evaluate --rules ./rules --file events.jsonl
//
//	# Check rule files
//	swarmshield rules validate ./rules
//
//	# Query the verdict audit trail
//	swarmshield verdicts query --workspace ws-1 --action block
//
// Every configuration field can be overridden with a SWARMSHIELD_*
// environment variable.
package main

func main() {
	Execute()
}
