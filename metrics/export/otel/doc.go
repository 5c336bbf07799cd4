// Package otel provides OpenTelemetry metric bindings for the engine's
// counters.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and a
// single callback that reads [authflow.Engine.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
