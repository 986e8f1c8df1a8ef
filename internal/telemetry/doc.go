// Package telemetry exports OpenTelemetry traces and metrics over OTLP.
//
// New installs the providers as otel globals. The pipeline and the HTTP
// server create their spans through otel.Tracer, so they need no reference
// to this package:
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version), logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Export is off by default. A collector that cannot be reached never stops
// the service: the instance reports Degraded in its health status instead.
//
// Tests use TestTelemetry, whose Tracer records spans in memory.
package telemetry
