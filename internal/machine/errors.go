package machine

import "fmt"

// Error reports an admission failure or unknown/malformed command — the
// "machine errors" family of spec §7, surfaced to the user as
// "ERROR <msg>", distinct from *gcode.ParseError.
type Error struct {
	Op  string
	Msg string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func errf(op, format string, args ...any) *Error {
	return &Error{Op: op, Msg: fmt.Sprintf(format, args...)}
}
