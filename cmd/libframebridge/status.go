package main

import "github.com/roach88/framebridge/internal/core"

// Status codes returned across the C boundary. Zero is success.
const (
	statusOK                      = 0
	statusDuplicateHandle         = 1
	statusHandleNotFound          = 2
	statusLifecycleOrderViolation = 3
	statusSchedulerNodeNotFound   = 4
	statusInvalidTimeStep         = 5
	statusQueueClosed             = 6
	statusInvalidHandle           = 7
	statusError                   = -1
)

var statusByCode = map[core.ErrorCode]int{
	core.CodeDuplicateHandle:         statusDuplicateHandle,
	core.CodeHandleNotFound:          statusHandleNotFound,
	core.CodeLifecycleOrderViolation: statusLifecycleOrderViolation,
	core.CodeSchedulerNodeNotFound:   statusSchedulerNodeNotFound,
	core.CodeInvalidTimeStep:         statusInvalidTimeStep,
	core.CodeQueueClosed:             statusQueueClosed,
	core.CodeInvalidHandle:           statusInvalidHandle,
}

// status maps a bridge error to its C status code.
func status(err error) int {
	if err == nil {
		return statusOK
	}
	if s, ok := statusByCode[core.CodeOf(err)]; ok {
		return s
	}
	return statusError
}
