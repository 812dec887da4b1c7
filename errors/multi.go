package errors

import (
	"fmt"
	"strings"
)

// Append clubs together all provided errors. Nil values are ignored.
//
// If none or only one non nil error is provided, that error is returned
// as it is. Multiple errors are combined into a collection whose Is
// method matches any of its members.
func Append(errs ...error) error {
	var res multiErr
	for _, err := range errs {
		if isNilErr(err) {
			continue
		}
		// Flatten nested collections to keep the result shallow.
		if m, ok := err.(multiErr); ok {
			res = append(res, m...)
			continue
		}
		res = append(res, err)
	}

	switch len(res) {
	case 0:
		return nil
	case 1:
		return res[0]
	default:
		return res
	}
}

type multiErr []error

func (m multiErr) Error() string {
	points := make([]string, len(m))
	for i, err := range m {
		points[i] = fmt.Sprintf("* %s", err)
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s\n", len(m), strings.Join(points, "\n\t"))
}

// Unpack implements the unpacker interface.
func (m multiErr) Unpack() []error {
	return m
}
