// Package ruleset compiles CUE definitions of rules, users and leads.
//
// A ruleset directory holds one CUE package with three optional top-level
// structs keyed by ID:
//
//	package crm
//
//	user: "u-ana": {
//		name:  "Ana Souza"
//		email: "ana@example.com"
//	}
//
//	rule: welcome: {
//		name:       "Welcome new leads"
//		trigger:    {kind: "new_lead", value: 5}
//		action:     {kind: "send_whatsapp"}
//		created_by: "u-ana"
//	}
//
//	lead: "l-1": {
//		name:       "Bruno"
//		phone:      "+55 11 99990000"
//		status:     "new"
//		created_at: "2026-10-15T11:57:00Z"
//	}
//
// Compilation rejects unknown trigger and action kinds, so a loaded rule
// always parses at cycle time. Errors carry CUE source positions.
package ruleset
