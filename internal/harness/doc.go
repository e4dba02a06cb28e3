// Package harness runs conformance scenarios against the contract engine.
//
// A scenario is a YAML file naming a catalog, a fixed validator clock and
// an ordered list of steps. Each step validates an envelope, adjudicates
// an admission or resolves a payload schema, and may carry an expect
// clause checked against the real engine result:
//
//	name: downgrade_admission
//	description: v3 is readable as v2 by a consumer pinned to {1, 2}
//	catalog: catalogs/scored.yaml
//	now: "2026-01-15T10:00:00Z"
//	steps:
//	  - action: admit
//	    envelope: {type: idea.scored, schema_version: 3}
//	    policies:
//	      - {type: idea.scored, versions: [1, 2]}
//	    expect: {outcome: ADMIT_WITH_DOWNGRADE, target: 2}
//
// Every scenario runs on a fresh sealed engine and a fresh in-memory audit
// store, so runs are isolated and deterministic. The trace of a run is a
// canonical JSON document suitable for golden comparison (see
// RunWithGolden).
package harness
