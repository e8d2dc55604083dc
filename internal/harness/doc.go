// Package harness runs delta scenarios against a real view.
//
// A scenario is a YAML file listing the batches a server would send, in
// wire shape, plus assertions about the resulting table. Run feeds the
// batches through a subscription.View backed by a SliceStream, so the same
// loop, reconciler and table code as a live watcher is exercised.
//
// Every run also records the session in an in-memory journal and replays
// it onto a fresh table. A replay whose digest differs from the live table
// fails the scenario.
//
// Example scenario:
//
//	name: snapshot-then-update
//	description: a task changes state after the snapshot
//	workflow: "~u/w"
//	batches:
//	  - id: b1
//	    added:
//	      workflow:
//	        id: "~u/w"
//	        cyclePoints: [{id: "~u/w//1", cyclePoint: "1"}]
//	        taskProxies:
//	          - {id: "~u/w//1/foo", name: foo, state: waiting, firstParent: {id: "~u/w//1"}}
//	  - id: b2
//	    updated:
//	      taskProxies: [{id: "~u/w//1/foo", state: running}]
//	assertions:
//	  - {type: node_state, id: "~u/w//1/foo", state: running}
//	  - {type: tally, id: "~u/w//1", summary: running}
//
// Golden files hold the canonical view of the final table, see
// RunWithGolden.
package harness
