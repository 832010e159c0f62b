// Package logger builds the process-wide zap logger.
package logger

import "go.uber.org/zap"

// New returns a logger for the given service name. Production gets JSON
// output at info level, everything else the development console encoder.
func New(service, env string) (*zap.Logger, error) {
	var log *zap.Logger
	var err error
	if env == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("service", service)), nil
}
