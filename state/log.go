package state

import (
	cosmoslog "cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// treeLogger lets the iavl tree log through the node's CometBFT logger.
type treeLogger struct {
	cmtlog.Logger
}

var _ cosmoslog.Logger = treeLogger{}

func newTreeLogger(lg cmtlog.Logger) cosmoslog.Logger {
	return treeLogger{lg}
}

func (l treeLogger) Info(msg string, keyVals ...any) {
	l.Logger.Info(msg, keyVals...)
}

func (l treeLogger) Error(msg string, keyVals ...any) {
	l.Logger.Error(msg, keyVals...)
}

// Warn has no CometBFT level of its own.
func (l treeLogger) Warn(msg string, keyVals ...any) {
	l.Logger.Info(msg, append(keyVals, "level", "warn")...)
}

func (l treeLogger) Debug(msg string, keyVals ...any) {
	l.Logger.Debug(msg, keyVals...)
}

func (l treeLogger) With(keyVals ...any) cosmoslog.Logger {
	return treeLogger{l.Logger.With(keyVals...)}
}

func (l treeLogger) Impl() any {
	return l.Logger
}
