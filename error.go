package byzproof

import (
	"fmt"

	"golang.org/x/xerrors"
)

// The kinds of failures a verification can end with. Every error returned by
// the verifiers wraps exactly one of them, so callers can test the kind with
// xerrors.Is (or errors.Is).
var (
	// ErrInvalidInput is a caller bug, like a missing key.
	ErrInvalidInput = xerrors.New("invalid input")
	// ErrMalformedProof is returned when the content of a proof is not
	// consistent with itself.
	ErrMalformedProof = xerrors.New("malformed proof")
	// ErrChainBroken is returned when a forward-link doesn't follow the
	// previous one or its signature doesn't verify.
	ErrChainBroken = xerrors.New("chain broken")
	// ErrRootMismatch is returned when the authenticated block doesn't hold
	// the root of the inclusion proof.
	ErrRootMismatch = xerrors.New("root mismatch")
	// ErrNotFound is returned when a value is requested from a proof of
	// absence.
	ErrNotFound = xerrors.New("not found")
)

// Error is a wrapper around an standard error that allows
// to print the stack trace from the call of the constructor.
type Error struct {
	err   error
	msg   string
	frame xerrors.Frame
}

// NewError returns an error of the given kind with a message describing what
// failed. The stack trace begins at the caller.
func NewError(kind error, msg string) error {
	return &Error{
		err:   kind,
		msg:   msg,
		frame: xerrors.Caller(1),
	}
}

// NewErrorf is like NewError but formats the message.
func NewErrorf(kind error, format string, args ...interface{}) error {
	return &Error{
		err:   kind,
		msg:   fmt.Sprintf(format, args...),
		frame: xerrors.Caller(1),
	}
}

// ErrorOrNil returns the error if any with the stack trace
// beginning at the call of the function.
func ErrorOrNil(err error, msg string) error {
	return errorOrNilSkip(err, msg, 2)
}

func errorOrNilSkip(err error, msg string, skip int) error {
	if err == nil {
		return nil
	}
	return &Error{
		err:   err,
		msg:   msg,
		frame: xerrors.Caller(skip),
	}
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg + ": " + fmt.Sprintf("%v", e.err)
	}
	return fmt.Sprintf("%v", e.err)
}

// Unwrap returns the next error in the chain.
func (e *Error) Unwrap() error {
	return e.err
}

// Format prints the error to the formatter.
func (e *Error) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

// FormatError prints the error to the printer. It prints
// the stack trace when the '+' is used in combination with
// 'v'.
func (e *Error) FormatError(p xerrors.Printer) error {
	if e.msg != "" {
		p.Printf("%s: %v", e.msg, e.err)
	} else {
		p.Printf("%v", e.err)
	}

	if p.Detail() {
		e.frame.Format(p)
		p.Printf("%+v", e.err)
	}
	return nil
}
