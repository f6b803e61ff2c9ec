package telemetry

import (
	"github.com/newrelic/go-agent/v3/newrelic"

	"example.com/supplierportal/services/deliverynote/config"
)

// InitNewRelic initializes the New Relic application. Returns nil without
// error when telemetry is disabled.
func InitNewRelic(cfg config.NewRelicConfig) (*newrelic.Application, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	return newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
}
