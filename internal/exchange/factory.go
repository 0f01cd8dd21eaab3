// Package exchange constructs the configured gateway.
package exchange

import (
	"fmt"

	"grid_trader/internal/config"
	"grid_trader/internal/core"
	"grid_trader/internal/exchange/binance"
	"grid_trader/internal/mock"
)

// New returns the gateway named by app.venue.
func New(cfg *config.Config, logger core.ILogger) (core.IGateway, error) {
	switch cfg.App.Venue {
	case "mock":
		return mock.NewGateway(), nil
	case "binance":
		venueCfg, err := cfg.GetVenueConfig()
		if err != nil {
			return nil, err
		}
		return binance.NewGateway(binance.Options{
			APIKey:    venueCfg.APIKey,
			SecretKey: venueCfg.SecretKey,
			BaseURL:   venueCfg.BaseURL,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported venue: %s", cfg.App.Venue)
	}
}
