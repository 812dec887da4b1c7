package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Field attaches a model attribute name to err, for example "Quorum" or
// "Signers". A nil err stays nil, so validation can be written as a chain
// of calls without checking each result.
//
// Nested attributes are named with dots, for example "Signers.2".
func Field(fieldName string, err error, description string, args ...interface{}) error {
	if isNilErr(err) {
		return nil
	}
	if len(args) != 0 {
		description = fmt.Sprintf(description, args...)
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	return &fieldError{field: fieldName, desc: description, parent: err}
}

// AppendField adds a field error to errs. Both can be nil.
func AppendField(errs error, fieldName string, err error) error {
	return Append(errs, Field(fieldName, err, ""))
}

type fieldError struct {
	field  string
	desc   string
	parent error
}

func (e *fieldError) Error() string {
	msg := fmt.Sprintf("field %q: ", e.field)
	if e.desc != "" {
		msg += e.desc + ": "
	}
	return msg + e.parent.Error()
}

func (e *fieldError) Cause() error  { return e.parent }
func (e *fieldError) Field() string { return e.field }

type fielder interface {
	Field() string
}

// FieldErrors collects all errors created for given attribute. Multi
// errors are searched in every branch. A matching field error is returned
// as a whole, including its cause.
func FieldErrors(err error, fieldName string) []error {
	var found []error
	for !isNilErr(err) {
		if f, ok := err.(fielder); ok && f.Field() == fieldName {
			return append(found, err)
		}
		switch e := err.(type) {
		case unpacker:
			for _, child := range e.Unpack() {
				found = append(found, FieldErrors(child, fieldName)...)
			}
			return found
		case causer:
			err = e.Cause()
		default:
			return found
		}
	}
	return found
}
