package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

// FilterOption restricts output to entries matching the zapfilter rules,
// for example "debug:tokenstore.* info:*". The logger level still applies,
// so loggers using filters are usually created with DebugLevel.
func FilterOption(rules string) (Option, error) {
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, err
	}
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(c, filter)
	}), nil
}
