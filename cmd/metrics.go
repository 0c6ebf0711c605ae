package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// logMetrics writes the counters gathered during the command at debug
// level.
func logMetrics(gatherer prometheus.Gatherer) {
	families, err := gatherer.Gather()
	if err != nil {
		logger.Debug("gathering metrics failed", zap.Error(err))
		return
	}

	for _, family := range families {
		for _, metric := range family.GetMetric() {
			fields := []zap.Field{zap.String("metric", family.GetName())}
			for _, label := range metric.GetLabel() {
				fields = append(fields, zap.String(label.GetName(), label.GetValue()))
			}

			switch {
			case metric.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", metric.GetCounter().GetValue()))
			case metric.GetGauge() != nil:
				fields = append(fields, zap.Float64("value", metric.GetGauge().GetValue()))
			case metric.GetHistogram() != nil:
				fields = append(fields,
					zap.Uint64("count", metric.GetHistogram().GetSampleCount()),
					zap.Float64("sum", metric.GetHistogram().GetSampleSum()))
			}
			logger.Debug("metric", fields...)
		}
	}
}
