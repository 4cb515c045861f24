package kserve

import "github.com/pkg/errors"

var (
	// ErrServerNotReady is returned when the server or model readiness probe
	// does not report ready
	ErrServerNotReady = errors.New("model server not ready")
	// ErrOutputNotFound is returned when a response lacks a requested output
	ErrOutputNotFound = errors.New("output not found")
	// ErrUnsupportedDatatype is returned for tensor datatypes that can not be
	// converted to float32, such as BYTES
	ErrUnsupportedDatatype = errors.New("unsupported datatype")
)
