package survey

import "fmt"

// ParseError indicates a malformed input file or record. File-level
// parse failures exclude that file from the run; record-level ones are
// recovered by the loaders (skip and count) and never reach callers.
type ParseError struct {
	File   string
	Line   int // 1-based record line, 0 when the whole file is at fault
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %s", e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}
