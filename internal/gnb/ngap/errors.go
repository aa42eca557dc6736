package ngap

import "errors"

var (
	ErrContextNotFound      = errors.New("ngap: context not found")
	ErrAmfNotConnected      = errors.New("ngap: amf not connected")
	ErrConstraintViolation  = errors.New("ngap: protocol constraint violation")
	ErrEncodingFailure      = errors.New("ngap: encoding failure")
	ErrUnsupportedProcedure = errors.New("ngap: unsupported procedure")
	ErrUnrecognizedValue    = errors.New("ngap: unrecognized enumeration value")
)
