// Package otel bridges engine metrics into OpenTelemetry. [NewExporter]
// registers one Int64ObservableCounter per engine counter and one gauge per
// histogram bucket; a single callback reads a metrics snapshot on each
// collection cycle. Callers own the MeterProvider.
package otel
