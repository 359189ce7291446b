// Package metric provides Prometheus-based metrics collection and an HTTP
// server for query engine monitoring.
//
// The package offers a centralized metrics registry managing both core
// protocol metrics (queries served, wire payload sizes, error codes) and
// custom transport-specific metrics. It includes an HTTP server exposing
// metrics in Prometheus format.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	core := registry.CoreMetrics()
//	core.RecordQuery("http", "listMovies", "ok", 0.042)
package metric
