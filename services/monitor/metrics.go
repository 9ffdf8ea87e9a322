package monitor

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("slotwatch/services/monitor")
var meter = otel.Meter("slotwatch/services/monitor")

var cyclesTotal, _ = meter.Int64Counter(
	"monitor_cycles_total",
	metric.WithDescription("Poll cycles that did work, by monitor."),
)
var cycleErrorsTotal, _ = meter.Int64Counter(
	"monitor_cycle_errors_total",
	metric.WithDescription("Poll cycles that ended in an error, by monitor."),
)
var reauthTotal, _ = meter.Int64Counter(
	"monitor_reauth_total",
	metric.WithDescription("Re-authentications triggered by an expired session."),
)
var statusFlipsTotal, _ = meter.Int64Counter(
	"monitor_status_flips_total",
	metric.WithDescription("Announced availability transitions, by monitor."),
)
