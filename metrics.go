// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewDefaultMeterProvider builds an otel SDK MeterProvider with a periodic
// reader exporting to exporter (e.g. an otlpmetricgrpc or stdoutmetric
// exporter), for hosts that want PairOptions.Meter wired up without
// assembling their own otel pipeline. interval controls how often the
// reader collects; 0 uses the SDK's default.
func NewDefaultMeterProvider(exporter sdkmetric.Exporter, interval time.Duration) *sdkmetric.MeterProvider {
	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(interval))
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
	)
}

// pairMetrics wraps the otel instruments a Pair records into, if a Meter
// was supplied via PairOptions.Meter. Every field is nil-checked so an
// unconfigured Pair pays nothing beyond the nil check.
type pairMetrics struct {
	calls        metric.Int64Counter
	callErrors   metric.Int64Counter
	callTimeouts metric.Int64Counter
	emits        metric.Int64Counter
	actorCalls   metric.Int64Counter
}

func newPairMetrics(m metric.Meter) *pairMetrics {
	if m == nil {
		return nil
	}
	pm := &pairMetrics{}
	pm.calls, _ = m.Int64Counter("rpc.calls.total")
	pm.callErrors, _ = m.Int64Counter("rpc.call_errors.total")
	pm.callTimeouts, _ = m.Int64Counter("rpc.call_timeouts.total")
	pm.emits, _ = m.Int64Counter("rpc.emits.total")
	pm.actorCalls, _ = m.Int64Counter("rpc.actor_calls.total")
	return pm
}

func (pm *pairMetrics) recordCall(ctx context.Context, method string, err error) {
	if pm == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("method", method))
	if pm.calls != nil {
		pm.calls.Add(ctx, 1, attrs)
	}
	if err == nil {
		return
	}
	if _, timedOut := err.(*TimeoutError); timedOut {
		if pm.callTimeouts != nil {
			pm.callTimeouts.Add(ctx, 1, attrs)
		}
		return
	}
	if pm.callErrors != nil {
		pm.callErrors.Add(ctx, 1, attrs)
	}
}

func (pm *pairMetrics) recordEmit(ctx context.Context, event string) {
	if pm == nil || pm.emits == nil {
		return
	}
	pm.emits.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func (pm *pairMetrics) recordActorCall(ctx context.Context, actorID, method string) {
	if pm == nil || pm.actorCalls == nil {
		return
	}
	pm.actorCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("actor", actorID), attribute.String("method", method)))
}
