// Package telemetry provides OpenTelemetry initialization and helpers
// for tracing a recipe-gantt run from page fetch to model output.
//
// The package configures OTLP HTTP export for traces and logs, with support
// for Grafana Cloud and local collector backends.
package telemetry
