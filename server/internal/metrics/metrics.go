package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talentmanager/talentmanager/server/internal/table"
)

const namespace = "talentmanager"

// Metrics is the Prometheus collection of talentmanager-server.
type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	Employees prometheus.Gauge
	Additions prometheus.Counter
	Reloads   *prometheus.CounterVec

	gaugeMu sync.Mutex // serialises read-then-set of Employees
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		Employees: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "employees",
			Help:      "Records currently held in the employee table.",
		}),
		Additions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "employee_additions_total",
			Help:      "Employees appended through the API.",
		}),
		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_reloads_total",
			Help:      "Reloads of the backing file triggered by external changes, by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe counts one served request.
func (m *Metrics) Observe(route string, code int) {
	m.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Track keeps the table gauges current. It subscribes to tbl's events.
// Events are delivered outside the table lock and may arrive out of order,
// so the gauge is read back from tbl, one update at a time, rather than taken
// from the event.
func (m *Metrics) Track(tbl *table.Table) {
	m.syncEmployees(tbl)
	tbl.Subscribe(func(ev table.Event) {
		switch ev.Kind {
		case table.EventAdded:
			m.Additions.Inc()
		case table.EventReloaded:
			m.Reloads.WithLabelValues("ok").Inc()
		case table.EventReloadFailed:
			m.Reloads.WithLabelValues("error").Inc()
		}
		m.syncEmployees(tbl)
	})
}

func (m *Metrics) syncEmployees(tbl *table.Table) {
	m.gaugeMu.Lock()
	defer m.gaugeMu.Unlock()
	m.Employees.Set(float64(tbl.Len()))
}
