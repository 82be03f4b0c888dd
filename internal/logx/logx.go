package logx

import (
	"go.uber.org/zap"
)

// New builds the process logger. Every component receives it explicitly;
// nothing logs through a package-level global.
func New(service string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("service", service)), nil
}
