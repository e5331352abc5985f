// Package rulestore provides durable storage for policy rules and detection
// rules.
//
// Backends:
//
//   - MemoryBackend: in-process maps. Used for tests, offline evaluation and
//     deployments that keep rules in YAML files.
//   - SQLiteBackend: a single SQLite database (modernc.org/sqlite, no cgo).
//     Rule configuration is stored as a JSON document and validated only
//     when the orchestrator compiles it.
//
// Rules files are YAML documents, one workspace per file:
//
//	workspace: ws-1
//	detection_rules:
//	  - id: aws-key
//	    detection_type: regex
//	    pattern: 'AKIA[0-9A-Z]{16}'
//	policy_rules:
//	  - name: block secrets
//	    rule_type: pattern_match
//	    action: block
//	    config:
//	      detection_rule_ids: [aws-key]
//
// Watcher and DirectorySync reload such files on change and refresh the
// detection cache and the orchestrator's rule snapshot.
package rulestore
