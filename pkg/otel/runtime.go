package otel

import (
	"time"

	hostmetrics "go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

// StartRuntimeMetrics starts Go runtime (GC, memory) and host (CPU,
// memory, network, disk) metric collection, unchanged from the teacher's
// pkg/otel/runtime.go.
func StartRuntimeMetrics() error {
	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(30 * time.Second)); err != nil {
		return err
	}
	return hostmetrics.Start()
}
