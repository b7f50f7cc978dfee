package sim

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Метрики цикла симуляции. Регистрируются в глобальном регистре Prometheus
// один раз на процесс: Runner'ов может быть несколько (например, в тестах),
// а MustRegister не прощает повторной регистрации.
var (
	metricsOnce sync.Once
	simStats    *simMetrics
)

type simMetrics struct {
	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	entities     prometheus.Gauge
	commands     *prometheus.CounterVec
	snapshots    *prometheus.CounterVec
}

func metrics() *simMetrics {
	metricsOnce.Do(func() {
		simStats = &simMetrics{
			ticks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "worldsim",
				Subsystem: "sim",
				Name:      "ticks_total",
				Help:      "Общее число выполненных тиков симуляции.",
			}),
			tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "worldsim",
				Subsystem: "sim",
				Name:      "tick_duration_seconds",
				Help:      "Длительность одного тика симуляции.",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			}),
			entities: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "worldsim",
				Subsystem: "sim",
				Name:      "entities",
				Help:      "Текущее количество сущностей в общем списке мира.",
			}),
			commands: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "worldsim",
				Subsystem: "sim",
				Name:      "commands_total",
				Help:      "Выполненные команды симуляции по операциям и результату.",
			}, []string{"op", "result"}),
			snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "worldsim",
				Subsystem: "sim",
				Name:      "snapshots_total",
				Help:      "Созданные снапшоты мира по результату.",
			}, []string{"result"}),
		}
		prometheus.MustRegister(
			simStats.ticks,
			simStats.tickDuration,
			simStats.entities,
			simStats.commands,
			simStats.snapshots,
		)
	})
	return simStats
}

// опции результата для commands/snapshots
const (
	resultOK    = "ok"
	resultError = "error"
)
