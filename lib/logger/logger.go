package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init 按给定级别初始化全局logger，只有第一次调用生效
func Init(level string) {
	once.Do(func() {
		instance = build(level)
	})
}

// L 返回全局logger，未初始化时按info级别构建
func L() *zap.Logger {
	if instance == nil {
		Init("info")
	}
	return instance
}

// Named 返回带组件名的logger，用于区分日志来源
func Named(name string) *zap.Logger {
	return L().Named(name)
}

func build(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
