// Package harness runs tree-edit scenarios: an initial tree, a timeline of
// interleaved builder sessions committing to one owner, and assertions on
// the final tree.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: disjoint_concurrent_edit
//	description: "two sessions edit disjoint parts of the tree"
//	registry:
//	  - ../registry/pipeline.cue
//	tree:
//	  - {ref: data, transformer: download, params: {url: "a"}}
//	  - {ref: model, parent: data, transformer: parse}
//	timeline:
//	  - {session: a, op: open}
//	  - {session: b, op: open}
//	  - {session: b, op: apply, at: data, transformer: parse, ref: model2}
//	  - {session: b, op: commit}
//	  - {session: a, op: update, at: model, params: {mode: "fast"}}
//	  - {session: a, op: commit, expect: {replayed: true}}
//	assertions:
//	  - {type: parent, ref: model2, parent: data}
//	  - {type: params, ref: model, params: {mode: "fast"}}
//
// Ops are open, apply, group, apply_or_update, apply_or_update_tagged,
// insert, update, delete and commit. A step's expect clause may name an
// error code (CONFLICT, NODE_NOT_FOUND, TYPE_MISMATCH, ...), whether a
// commit replayed, and the session's edit count. A session ends at its
// commit, whether or not the commit succeeds.
//
// # Assertion Types
//
//   - exists, absent: the node is or is not in the final tree
//   - parent, children, tags, params, transformer: node fields; children
//     are compared in order
//   - count: node count of the tree, or of the subtree of ref
//
// # Deterministic Testing
//
// Generated refs come from a fresh testutil.RefSequence per run, and trace
// sequence numbers are logical. Tree invariants are validated after every
// successful commit. Golden snapshots hold the canonical JSON of the trace
// and the final tree dump.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/disjoint.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
