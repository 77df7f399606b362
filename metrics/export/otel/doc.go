// Package otel exports engine metrics through an OpenTelemetry meter.
//
// The exporter registers observable instruments whose callback reads an
// engine metrics snapshot on each collection cycle. Nothing is pushed; the
// engine's write path stays free of OTel dependencies.
package otel
