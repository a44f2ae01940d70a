// Package model provides the domain types shared by the automation engine.
//
// This package contains type definitions and parsers only. All other internal
// packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Rules persist their trigger and action as (kind, value) strings; the
//     engine only ever acts on the typed variants produced by ParseTrigger and
//     ParseAction
//   - All JSON tags use snake_case
//   - Leads are never mutated by the engine
package model
