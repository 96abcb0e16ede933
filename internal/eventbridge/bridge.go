// Package eventbridge exposes the engine's tier-health as a standard
// gRPC health check, so any off-the-shelf gRPC client, load balancer,
// or orchestrator probe can watch the render loop degrade without
// speaking vizcore's own event schema.
//
// It deliberately does not define a custom protobuf service: engine
// health collapses onto the two states grpc_health_v1 already models
// (SERVING / NOT_SERVING) per tier, so that's the contract exposed
// over the wire. Anything richer stays in-process, consumed directly
// off the events.Bus.
package eventbridge

import (
	"fmt"

	"github.com/billyribeiro-ux/vizcore/internal/events"
	"github.com/billyribeiro-ux/vizcore/internal/monitoring"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// CurrentService is the health-checked service name that reflects the
// overall render loop: SERVING on every ordinary TierSwitch/LODChange,
// NOT_SERVING the instant a PerformanceViolation fires (no lower tier
// left to degrade to).
const CurrentService = "tier.current"

// tierService names the per-tier health entry, e.g. "tier.vector".
func tierService(name string) string {
	return fmt.Sprintf("tier.%s", name)
}

// Bridge watches an events.Bus and reflects tier availability and
// render-loop health as gRPC health status transitions, grounded on
// the teacher's visualiser.Publisher gRPC server lifecycle — minus
// the bespoke frame wire format, since health status is all this
// bridge broadcasts.
type Bridge struct {
	health *health.Server
	unreg  events.Unregister
}

// NewBridge subscribes to bus and starts CurrentService in the SERVING
// state. A per-tier "tier.<name>" entry has no status until a
// TierSwitch names that tier. Call Register to attach it to a
// *grpc.Server.
func NewBridge(bus *events.Bus) *Bridge {
	b := &Bridge{health: health.NewServer()}
	b.health.SetServingStatus(CurrentService, healthpb.HealthCheckResponse_SERVING)
	b.unreg = bus.SubscribeFunc(b.handle)
	return b
}

func (b *Bridge) handle(ev events.Event) {
	switch ev.Type {
	case events.KindTierSwitch:
		p, ok := ev.Payload.(events.TierSwitchPayload)
		if !ok {
			return
		}
		b.health.SetServingStatus(CurrentService, healthpb.HealthCheckResponse_SERVING)
		b.health.SetServingStatus(tierService(p.To), healthpb.HealthCheckResponse_SERVING)
		if p.Reason == events.ReasonFallback && p.From != "" {
			// The requested tier had no registered surface; mark it
			// unavailable rather than merely "not current".
			b.health.SetServingStatus(tierService(p.From), healthpb.HealthCheckResponse_NOT_SERVING)
		}
	case events.KindLODChange:
		b.health.SetServingStatus(CurrentService, healthpb.HealthCheckResponse_SERVING)
	case events.KindPerformanceViolation:
		b.health.SetServingStatus(CurrentService, healthpb.HealthCheckResponse_NOT_SERVING)
		if p, ok := ev.Payload.(events.ViolationPayload); ok {
			monitoring.Logf("[eventbridge] performance violation: %d consecutive drops, avg frame time %.2fms",
				p.ConsecutiveDrops, p.AvgFrameTimeMS)
		}
	}
}

// Register attaches the bundled health service and server reflection
// to grpcServer, so any standard grpc_health_v1 client (grpcurl,
// Kubernetes gRPC probes, …) can watch CurrentService or a specific
// "tier.<name>" directly.
func (b *Bridge) Register(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, b.health)
	reflection.Register(grpcServer)
}

// Close unsubscribes from the event bus. The underlying health.Server
// has no separate shutdown of its own.
func (b *Bridge) Close() {
	if b.unreg != nil {
		b.unreg()
	}
}
