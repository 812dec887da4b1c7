package errors

import "fmt"

const (
	// SuccessABCICode declares an ABCI response use 0 to signal that the
	// processing was successful and no error is returned.
	SuccessABCICode = 0

	// All unclassified errors that do not provide an ABCI code are
	// clubbed under an internal error code and a generic message instead
	// of detailed error string.
	internalABCICode uint32 = 1
	internalABCILog  string = "internal error"
)

// ABCIInfo returns the ABCI error information as consumed by the client
// facing interfaces. Provided error is the one used to compute the code and
// the log message.
//
// Errors that do not wrap a registered root error, as well as panics, are
// reported as an internal error without revealing the details, unless debug
// is set.
func ABCIInfo(err error, debug bool) (uint32, string) {
	if isNilErr(err) {
		return SuccessABCICode, ""
	}

	code := Code(err)
	if !debug && (code == internalABCICode || ErrPanic.Is(err)) {
		return internalABCICode, internalABCILog
	}
	if debug {
		return code, fmt.Sprintf("%+v", err)
	}
	return code, err.Error()
}
