// Package telemetry provides observability instrumentation for the agent.
//
// It combines structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and an internal event bus behind
// a single Telemetry aggregate.
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "puppet-agent"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Component loggers carry structured fields through a convergence pass:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithReportID(reportID).WithResource("Package[nginx]")
//	logger.Info("evaluating resource")
//
// Metrics are exposed over HTTP at /metrics (default :9090) and cover
// pass lifecycle, per-resource evaluation results, provider calls, and
// recorded transaction events:
//
//	tel.Metrics.RecordPassStarted("apply")
//	tel.Metrics.RecordProviderCall("apt", "install", duration)
//	tel.Metrics.RecordPassCompleted("changed", duration)
//
// Tracing supports stdout (development) and OTLP/gRPC (production)
// exporters. Use StartPassSpan, StartResourceSpan and StartProviderSpan
// for the standard span hierarchy.
//
// The event publisher delivers pass and resource lifecycle events to
// in-process subscribers, optionally buffered and asynchronous:
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s: %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
package telemetry
