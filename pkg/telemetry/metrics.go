package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric names
const (
	MetricOrdersPlacedTotal    = "grid_trader_orders_placed_total"
	MetricOrdersCanceledTotal  = "grid_trader_orders_canceled_total"
	MetricFillsTotal           = "grid_trader_fills_total"
	MetricMatchProfitTotal     = "grid_trader_match_profit_total"
	MetricVolumeTotal          = "grid_trader_volume_total"
	MetricNetPosition          = "grid_trader_net_position"
	MetricOrdersOpen           = "grid_trader_orders_open"
	MetricRebalancePassesTotal = "grid_trader_rebalance_passes_total"
	MetricStreamReconnects     = "grid_trader_stream_reconnects_total"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	OrdersPlacedTotal    metric.Int64Counter
	OrdersCanceledTotal  metric.Int64Counter
	FillsTotal           metric.Int64Counter
	MatchProfitTotal     metric.Float64Counter
	VolumeTotal          metric.Float64Counter
	NetPosition          metric.Int64ObservableGauge
	OrdersOpen           metric.Int64ObservableGauge
	RebalancePassesTotal metric.Int64Counter
	StreamReconnects     metric.Int64Counter

	// State for observable gauges
	mu             sync.RWMutex
	netPositionMap map[string]int64
	openOrdersMap  map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			netPositionMap: make(map[string]int64),
			openOrdersMap:  make(map[string]int64),
		}
		// Noop instruments until InitMetrics wires the real meter, so
		// recording is always safe.
		_ = globalMetrics.InitMetrics(noop.NewMeterProvider().Meter("grid_trader"))
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total orders placed"))
	if err != nil {
		return err
	}

	m.OrdersCanceledTotal, err = meter.Int64Counter(MetricOrdersCanceledTotal, metric.WithDescription("Total orders canceled"))
	if err != nil {
		return err
	}

	m.FillsTotal, err = meter.Int64Counter(MetricFillsTotal, metric.WithDescription("Total terminal fills processed"))
	if err != nil {
		return err
	}

	m.MatchProfitTotal, err = meter.Float64Counter(MetricMatchProfitTotal, metric.WithDescription("Cumulative matched-pair profit in quote currency"))
	if err != nil {
		return err
	}

	m.VolumeTotal, err = meter.Float64Counter(MetricVolumeTotal, metric.WithDescription("Total traded notional in quote currency"))
	if err != nil {
		return err
	}

	m.RebalancePassesTotal, err = meter.Int64Counter(MetricRebalancePassesTotal, metric.WithDescription("Total rebalance passes completed"))
	if err != nil {
		return err
	}

	m.StreamReconnects, err = meter.Int64Counter(MetricStreamReconnects, metric.WithDescription("Total subscription reconnect attempts"))
	if err != nil {
		return err
	}

	// Observables
	m.NetPosition, err = meter.Int64ObservableGauge(MetricNetPosition, metric.WithDescription("Net open position in filled rungs"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.netPositionMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.OrdersOpen, err = meter.Int64ObservableGauge(MetricOrdersOpen, metric.WithDescription("Number of currently resting orders"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.openOrdersMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// Helpers to update observable state

func (m *MetricsHolder) SetNetPosition(symbol string, net int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.netPositionMap[symbol] = net
}

func (m *MetricsHolder) SetOpenOrders(symbol string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openOrdersMap[symbol] = count
}

func (m *MetricsHolder) GetNetPosition() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64)
	for k, v := range m.netPositionMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) GetOpenOrders() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64)
	for k, v := range m.openOrdersMap {
		res[k] = v
	}
	return res
}
