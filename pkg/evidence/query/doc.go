// Package query validates verdict record queries and fills in defaults
// before a storage backend executes them.
//
//	q := &evidence.Query{WorkspaceID: "ws-1", Action: policy.ActionBlock}
//	if err := query.Validate(q); err != nil {
//	    return err
//	}
//	query.ApplyDefaults(q)
package query
