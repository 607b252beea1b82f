package health

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/talentmanager/talentmanager/server/internal/table"
)

// Service is the name reported for the employee table. The empty name
// reports overall server health.
const Service = "talentmanager.EmployeeTable"

// Reporter publishes the table's availability through the standard
// grpc.health.v1.Health service.
type Reporter struct {
	srv *health.Server
}

// New creates a Reporter with both names NOT_SERVING.
func New() *Reporter {
	r := &Reporter{srv: health.NewServer()}
	r.SetServing(false)
	return r
}

// Register installs the Health service on s.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.srv)
}

// Server returns the underlying Health implementation.
func (r *Reporter) Server() healthpb.HealthServer {
	return r.srv
}

// SetServing flips both the overall and the table status.
func (r *Reporter) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	r.srv.SetServingStatus("", st)
	r.srv.SetServingStatus(Service, st)
}

// Track marks the table SERVING and follows its reload events: a failed
// reload turns the status NOT_SERVING until the next successful change.
func (r *Reporter) Track(tbl *table.Table) {
	r.SetServing(true)
	tbl.Subscribe(func(ev table.Event) {
		switch ev.Kind {
		case table.EventReloadFailed:
			slog.Warn("health: table reload failed, reporting NOT_SERVING", "err", ev.Err)
			r.SetServing(false)
		case table.EventReloaded, table.EventAdded:
			r.SetServing(true)
		}
	})
}

// Shutdown reports NOT_SERVING for every service and ignores later updates.
func (r *Reporter) Shutdown() {
	r.srv.Shutdown()
}
