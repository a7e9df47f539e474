package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	LOG_FIELD_MAPPING   = "mapping"
	LOG_FIELD_FILEPATH  = "filepath"
	LOG_FIELD_BLOCKDEV  = "blockdev"
	LOG_FIELD_SIZE      = "size"
	LOG_FIELD_BLOCKSIZE = "blocksize"
	LOG_FIELD_RANGES    = "ranges"

	LOG_FIELD_EVENT    = "event"
	LOG_EVENT_MAP      = "map"
	LOG_EVENT_RELEASE  = "release"
	LOG_EVENT_REGISTER = "register"
	LOG_EVENT_INSPECT  = "inspect"
	LOG_EVENT_DUMP     = "dump"
	LOG_EVENT_CHECKSUM = "checksum"
	LOG_EVENT_SERVE    = "serve"

	LOG_FIELD_REASON    = "reason"
	LOG_REASON_PREPARE  = "prepare"
	LOG_REASON_START    = "start"
	LOG_REASON_COMPLETE = "complete"
	LOG_REASON_FAILURE  = "failure"
	LOG_REASON_ROLLBACK = "rollback"

	LOG_FIELD_OBJECT   = "object"
	LOG_OBJECT_MAPPING = "mapping"
	LOG_OBJECT_CONFIG  = "config"
)

type LoggingError struct {
	entry *logrus.Entry
	error
}

func ErrorWithFields(pkg string, fields logrus.Fields, format string, v ...interface{}) LoggingError {
	fields["pkg"] = pkg
	entry := logrus.WithFields(fields)
	entry.Message = fmt.Sprintf(format, v...)

	return LoggingError{entry, fmt.Errorf(format, v...)}
}
