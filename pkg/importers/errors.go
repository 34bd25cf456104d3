package importers

import (
	"errors"
	"fmt"
)

// ErrUnknownTester is returned by Registry.Lookup for an unregistered label.
var ErrUnknownTester = errors.New("importers: unknown tester")

// FormatError reports a primary curve file that cannot be located or
// parsed. It is fatal to one Decode call.
type FormatError struct {
	Tester string
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("importers: %s: %s: %s", e.Tester, e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// ConsistencyError reports paired data that disagree in count or shape.
type ConsistencyError struct {
	Tester string
	Path   string
	What   string
	Got    int
	Want   int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("importers: %s: %s: %s: got %d, want %d", e.Tester, e.Path, e.What, e.Got, e.Want)
}
