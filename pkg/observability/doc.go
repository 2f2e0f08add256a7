// Package observability provides structured logging, Prometheus metrics,
// health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, "json", os.Stdout)
//	observability.FromContext(ctx).WithField("account_id", id).Info("event accepted")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.DeliveriesTotal.WithLabelValues("POST", "success").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, cacheBackend, version)
//	router.HandleFunc("/health/ready", checker.Readiness)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request logging middleware
package observability
