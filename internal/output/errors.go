package output

import "errors"

// errCurrentlyActive backs ERR CURRENTLY_ACTIVE (spec.md §7): any
// command that requires a specific Output state but finds another.
var errCurrentlyActive = errors.New("output already active")
