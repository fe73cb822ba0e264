// Package harness runs verification scenarios: a query built through the
// typed builder is executed against a throwaway SQLite database and its
// rows are checked by the narrowing evaluator.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: active_users
//	description: "Only live users are returned"
//	schema: schema.cue
//	setup:
//	  - UPDATE users SET status = 'gone' WHERE id = 3
//	fixtures:
//	  users:
//	    - { id: 1, status: active, profile: { theme: dark } }
//	query:
//	  from: users
//	  as: u
//	  joins:
//	    - { table: orders, as: o, kind: left, on: { column: o.user_id, ref: u.id } }
//	  where:
//	    - { column: u.status, op: "=", value: active }
//	  select: [u.id, { column: u.profile, path: [theme], text: true, as: theme }]
//	  order_by: [{ column: u.id, desc: true }]
//	  limit: 10
//	expect:
//	  length: 1
//	  narrow:
//	    - { column: u.id, op: ">", value: 0 }
//	assertions:
//	  - type: rows_contain
//	    row: { id: 1 }
//
// The schema path is resolved relative to the scenario file. Columns are
// written alias.column; a bare name refers to the FROM entity, and in a
// select list a bare entity alias projects the whole row.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - rows_contain: some result row matches a subset of values
//   - row_order: a column takes the listed values in order
//   - row_count: exactly N rows match a subset of values
//   - final_state: queries a declared table and verifies one row
//
// # Deterministic Testing
//
// Every scenario runs in its own in-memory SQLite database, so runs are
// isolated and repeatable. Snapshot renders results as canonical JSON for
// golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/active_users.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
