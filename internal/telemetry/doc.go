// Package telemetry sets up OpenTelemetry tracing and metrics export for
// troubleshootd.
//
// Telemetry is off by default. When enabled it installs global tracer and
// meter providers backed by OTLP exporters (gRPC or HTTP), so packages that
// call otel.Tracer pick them up without further wiring. Exporter failures
// never stop the service; the instance is marked degraded instead.
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sampling_rate: 0.25
//
// Tests use NewTestTelemetry, which records spans in memory.
package telemetry
