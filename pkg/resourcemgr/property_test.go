package resourcemgr_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/resourcemgr"
	"github.com/sti-hpc/hospicon/pkg/transport"
)

// syncBoth drives one barrier round between an authority and a single
// proxy, same shape as resourcemgr_test.go's table tests.
func syncBoth(t *testing.T, authority, proxy interface{ Sync() error }) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- authority.Sync() }()
	if err := proxy.Sync(); err != nil {
		t.Fatalf("proxy sync: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("authority sync: %v", err)
	}
}

// TestResourceManagerInvariants checks the spec §8 properties that
// must hold for any sequence of requests against a fixed-capacity
// resource pool: a batch of requests in one barrier is never handed
// more chairs than the pool holds, and the authority's
// occupancy bookkeeping never disagrees with how many responses it
// actually handed out as non-saturated.
func TestResourceManagerInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("chair pool never admits more than its capacity in one barrier", prop.ForAll(
		func(capacity, requestCount int) bool {
			hub := transport.NewHub(2, requestCount+1)
			factory := agent.NewFactory(1)

			locations := make([]geometry.ContinuousCoord, capacity)
			for i := range locations {
				locations[i] = geometry.ContinuousCoord{X: float64(i), Y: 0}
			}
			authority := resourcemgr.NewChairAuthority(hub.For(0), locations)
			proxy := resourcemgr.NewChairProxy(hub.For(1))

			ids := make([]agent.ID, requestCount)
			for i := range ids {
				ids[i] = factory.New(agent.KindPatient)
				proxy.RequestChair(ids[i])
			}

			syncBoth(t, authority, proxy)

			admitted := 0
			for _, id := range ids {
				resp, ok := proxy.GetResponse(id)
				if !ok {
					return false // every request must get a response this barrier
				}
				if resp.Location != nil {
					admitted++
				}
			}
			return admitted <= capacity && admitted == authority.OccupiedCount()
		},
		gen.IntRange(0, 5),
		gen.IntRange(0, 10),
	))

	properties.Property("a chair released and re-requested in the same barrier is reusable, never duplicated", prop.ForAll(
		func(capacity int) bool {
			if capacity == 0 {
				return true
			}
			hub := transport.NewHub(2, 8)
			factory := agent.NewFactory(1)

			locations := make([]geometry.ContinuousCoord, capacity)
			for i := range locations {
				locations[i] = geometry.ContinuousCoord{X: float64(i), Y: 0}
			}
			authority := resourcemgr.NewChairAuthority(hub.For(0), locations)
			proxy := resourcemgr.NewChairProxy(hub.For(1))

			occupant := factory.New(agent.KindPatient)
			proxy.RequestChair(occupant)
			syncBoth(t, authority, proxy)
			resp, ok := proxy.GetResponse(occupant)
			if !ok || resp.Location == nil {
				return false
			}

			proxy.ReleaseChair(*resp.Location)
			newcomer := factory.New(agent.KindPatient)
			proxy.RequestChair(newcomer)
			syncBoth(t, authority, proxy)
			resp2, ok := proxy.GetResponse(newcomer)
			return ok && resp2.Location != nil && authority.OccupiedCount() == 1
		},
		gen.IntRange(1, 4),
	))

	properties.Property("service queue occupancy never exceeds its box count", prop.ForAll(
		func(boxCount, enqueueCount int) bool {
			hub := transport.NewHub(2, enqueueCount+1)
			factory := agent.NewFactory(1)

			boxes := make([]geometry.ContinuousCoord, boxCount)
			for i := range boxes {
				boxes[i] = geometry.ContinuousCoord{X: float64(i), Y: 1}
			}
			authority := resourcemgr.NewQueueAuthority(hub.For(0), transport.TagReception, boxes)
			proxy := resourcemgr.NewQueueProxy(hub.For(1), transport.TagReception)

			ids := make([]agent.ID, enqueueCount)
			for i := range ids {
				ids[i] = factory.New(agent.KindPatient)
				proxy.Enqueue(ids[i])
			}
			syncBoth(t, authority, proxy)

			dispatched := 0
			for _, id := range ids {
				if _, turn := proxy.IsMyTurn(id); turn {
					dispatched++
				}
			}
			// Reaching the front only marks an agent dispatchable; it stays
			// in the queue until its own Dequeue call, so depth tracks
			// everyone enqueued so far, not just those still waiting.
			return dispatched <= boxCount && authority.Depth() == enqueueCount
		},
		gen.IntRange(0, 4),
		gen.IntRange(0, 8),
	))

	properties.Property("ICU reservation counter never exceeds capacity across concurrent requests", prop.ForAll(
		func(capacity, requestCount int) bool {
			hub := transport.NewHub(2, requestCount+1)
			factory := agent.NewFactory(1)

			authority := resourcemgr.NewICUAuthority(hub.For(0), uint32(capacity))
			proxy := resourcemgr.NewICUProxy(hub.For(1))

			ids := make([]agent.ID, requestCount)
			for i := range ids {
				ids[i] = factory.New(agent.KindPatient)
				proxy.RequestBed(ids[i])
			}
			syncBoth(t, authority, proxy)

			admitted := 0
			for _, id := range ids {
				ok, present := proxy.GetResponse(id)
				if !present {
					return false
				}
				if ok {
					admitted++
				}
			}
			return uint32(admitted) <= uint32(capacity) && authority.ReservedBeds() == uint32(admitted)
		},
		gen.IntRange(0, 5),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
