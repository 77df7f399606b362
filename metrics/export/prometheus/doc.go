// Package prometheus renders engine metrics in Prometheus text exposition
// format from a snapshot, without pulling in the Prometheus client library.
package prometheus
