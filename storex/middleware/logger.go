package middleware

import (
	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
)

const (
	logMsgActionDispatched = "action entering pipeline"
	logMsgStateReplaced    = "root state replaced"
	logMsgActionFailed     = "action dispatch failed"

	logAttrActionType   = "action_type"
	logAttrFeatureCount = "feature_count"
	logAttrError        = "error"
)

// ActionLogger is an observer stage logging every action on its way through
// the pipeline: the type at debug level inbound, the new root's feature count
// at debug level outbound, and failures at error level.
type ActionLogger struct {
	logger storex.Logger
}

// NewActionLogger builds the logging stage.
func NewActionLogger(logger storex.Logger) *ActionLogger {
	return &ActionLogger{logger: logger}
}

func (l *ActionLogger) OnNext(action storex.Action, _ statemap.Root) {
	l.logger.Debug(logMsgActionDispatched, logAttrActionType, action.Type)
}

func (l *ActionLogger) OnComplete(next statemap.Root, action storex.Action) {
	l.logger.Debug(logMsgStateReplaced,
		logAttrActionType, action.Type,
		logAttrFeatureCount, next.Len())
}

func (l *ActionLogger) OnError(err error, action storex.Action) {
	l.logger.Error(logMsgActionFailed,
		logAttrError, err.Error(),
		logAttrActionType, action.Type)
}

var _ storex.Observer = (*ActionLogger)(nil)
