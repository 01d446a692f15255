package logging

import "errors"

var (
	ErrCreateLogFile = errors.New("logging: create log file")
	ErrWriteEvent    = errors.New("logging: write event")
	ErrMarshalEvent  = errors.New("logging: marshal event")
	ErrCloseWriter   = errors.New("logging: close writer")
)
