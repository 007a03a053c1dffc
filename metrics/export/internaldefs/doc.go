// Package internaldefs holds the metric name and bucket definitions shared
// by the Prometheus and OTel exporters, so both emit identical series for
// the same engine counters.
package internaldefs
