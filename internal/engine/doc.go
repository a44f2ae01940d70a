// Package engine runs automation cycles and schedules them.
//
// The engine is the heart of leadflow. Each cycle loads the active rules and
// the lead population, matches every rule against every lead, and hands each
// matched (rule, lead) pair to the dispatcher.
//
// ARCHITECTURE:
//
// Cycle:
//  1. Snapshot active rules and all leads (one read transaction when the store
//     supports it)
//  2. Parse each rule's trigger; rules with unknown triggers are skipped with a
//     configuration warning
//  3. Match leads against the trigger at the cycle's clock time
//  4. Dispatch matched pairs on a bounded worker pool
//  5. Tally results into a CycleReport
//
// Scheduler:
// One goroutine fires a cycle on start (optional) and then once per period.
// Cycles never overlap: the loop is synchronous and Engine.RunCycle refuses to
// start while another cycle holds the engine.
//
// CRITICAL PATTERNS:
//
// Exactly-once side effects:
// Matching is level-sensitive, so a pair is re-matched every cycle until the
// lead changes. Idempotency lives in the dispatcher's run-log gate, never in
// the matcher.
//
// Failure isolation:
// A failing pair never aborts its rule or the cycle. A failing cycle never
// stops the scheduler.
package engine
