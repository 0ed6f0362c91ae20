package consensus

import "go.uber.org/zap"

// newLogger builds the development-style console logger consensus
// diagnostics are written to when the caller doesn't supply its own.
func newLogger() (*zap.Logger, error) {
	cc := zap.NewDevelopmentConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.Encoding = "console"

	log, err := cc.Build()
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("module", "consensus")), nil
}
