// Package harness runs YAML conformance scenarios against the real engine.
//
// Each scenario runs in a fresh in-memory SQLite store with a fake clock,
// sequential IDs and a single dispatch worker, so every run of the same
// scenario produces the same trace. A scenario seeds users, rules and leads
// (lead times are offsets from the scenario clock), then executes steps:
//
//	steps:
//	  - cycle: true          # run one automation cycle
//	  - advance: 10m         # move the clock forward
//	  - put_lead: {...}      # insert or replace a lead
//
// After the steps, assertions are evaluated against the run log,
// notifications, follow-ups and per-cycle reports.
//
// The trace records one event per cycle: the cycle report plus every run-log
// entry, notification and follow-up that cycle created. Traces contain no
// generated IDs and are sorted, which makes them stable golden files:
//
//	go test ./internal/harness -update
package harness
