package model

import "errors"

// ErrDuplicateRun is returned by run-log writers when an entry already exists
// for a (rule, lead) pair. Callers treat it as "already executed", not a
// failure.
var ErrDuplicateRun = errors.New("run already recorded for rule and lead")
