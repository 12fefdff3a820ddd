package resourcemgr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/resourcemgr"
	"github.com/sti-hpc/hospicon/pkg/simclock"
	"github.com/sti-hpc/hospicon/pkg/transport"
)

func TestChairPoolAssignsAndReclaims(t *testing.T) {
	hub := transport.NewHub(2, 4)
	factory := agent.NewFactory(1)

	authority := resourcemgr.NewChairAuthority(hub.For(0), []geometry.ContinuousCoord{{X: 0, Y: 0}, {X: 1, Y: 0}})
	proxy := resourcemgr.NewChairProxy(hub.For(1))

	p1 := factory.New(agent.KindPatient)
	p2 := factory.New(agent.KindPatient)
	p3 := factory.New(agent.KindPatient)

	proxy.RequestChair(p1)
	proxy.RequestChair(p2)
	proxy.RequestChair(p3)

	done := make(chan error, 1)
	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	r1, ok1 := proxy.GetResponse(p1)
	require.True(t, ok1)
	r2, ok2 := proxy.GetResponse(p2)
	require.True(t, ok2)
	r3, ok3 := proxy.GetResponse(p3)
	require.True(t, ok3)

	assert.NotNil(t, r1.Location)
	assert.NotNil(t, r2.Location)
	assert.Nil(t, r3.Location, "third patient should find the two-chair pool saturated")
	assert.Equal(t, 2, authority.OccupiedCount())

	// Release the chair held by p1 and confirm p3 can now be seated.
	proxy.ReleaseChair(*r1.Location)
	proxy.RequestChair(p3)

	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	r3b, ok := proxy.GetResponse(p3)
	require.True(t, ok)
	assert.NotNil(t, r3b.Location, "chair released this tick must be reusable in the same sync")
}

func TestServiceQueueDispatchesInFIFOOrder(t *testing.T) {
	hub := transport.NewHub(2, 4)
	factory := agent.NewFactory(1)

	boxes := []geometry.ContinuousCoord{{X: 5, Y: 5}}
	authority := resourcemgr.NewQueueAuthority(hub.For(0), transport.TagReception, boxes)
	proxy := resourcemgr.NewQueueProxy(hub.For(1), transport.TagReception)

	first := factory.New(agent.KindPatient)
	second := factory.New(agent.KindPatient)

	proxy.Enqueue(first)
	proxy.Enqueue(second)

	done := make(chan error, 1)
	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	_, firstTurn := proxy.IsMyTurn(first)
	_, secondTurn := proxy.IsMyTurn(second)
	assert.True(t, firstTurn, "first enqueued patient should occupy the single box")
	assert.False(t, secondTurn, "second patient must wait with only one box available")

	proxy.Dequeue(first)
	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	_, secondTurnNow := proxy.IsMyTurn(second)
	assert.True(t, secondTurnNow, "box should free up once the first patient is dequeued")
}

func TestDoctorQueueOrdersBySoonestTimeout(t *testing.T) {
	hub := transport.NewHub(2, 4)
	factory := agent.NewFactory(1)

	locations := map[string][]geometry.ContinuousCoord{
		"cardiology": {{X: 1, Y: 1}},
	}
	authority := resourcemgr.NewDoctorAuthority(hub.For(0), locations)
	proxy := resourcemgr.NewDoctorProxy(hub.For(1))

	urgent := factory.New(agent.KindPatient)
	relaxed := factory.New(agent.KindPatient)
	occupant := factory.New(agent.KindPatient)

	// The single doctor slot is frozen for whoever holds it, so seat an
	// occupant first. Then enqueue the later-timeout patient before the
	// earlier one; once the occupant is dequeued, the earlier deadline
	// must take the slot.
	proxy.Enqueue("cardiology", occupant, simclock.NewDateTime(1000))
	done := make(chan error, 1)
	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	proxy.Enqueue("cardiology", relaxed, simclock.NewDateTime(100))
	proxy.Enqueue("cardiology", urgent, simclock.NewDateTime(10))
	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	proxy.Dequeue("cardiology", occupant)
	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	_, urgentTurn := proxy.IsMyTurn("cardiology", urgent)
	_, relaxedTurn := proxy.IsMyTurn("cardiology", relaxed)
	assert.True(t, urgentTurn, "earlier deadline must be dispatched first")
	assert.False(t, relaxedTurn)
}

func TestDoctorQueueFreezesInFlightSlots(t *testing.T) {
	hub := transport.NewHub(2, 4)
	factory := agent.NewFactory(1)

	locations := map[string][]geometry.ContinuousCoord{
		"cardiology": {{X: 1, Y: 1}},
	}
	authority := resourcemgr.NewDoctorAuthority(hub.For(0), locations)
	proxy := resourcemgr.NewDoctorProxy(hub.For(1))

	dispatched := factory.New(agent.KindPatient)
	proxy.Enqueue("cardiology", dispatched, simclock.NewDateTime(50))

	done := make(chan error, 1)
	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	_, turn := proxy.IsMyTurn("cardiology", dispatched)
	require.True(t, turn)

	// A new, more urgent patient arrives while "dispatched" is walking to
	// the doctor; it must not bump the in-flight slot.
	newcomer := factory.New(agent.KindPatient)
	proxy.Enqueue("cardiology", newcomer, simclock.NewDateTime(1))

	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	_, dispatchedStillTurn := proxy.IsMyTurn("cardiology", dispatched)
	_, newcomerTurn := proxy.IsMyTurn("cardiology", newcomer)
	assert.True(t, dispatchedStillTurn, "in-flight patient's slot must not be displaced")
	assert.False(t, newcomerTurn)
}

func TestICUAdmissionRejectsWhenFull(t *testing.T) {
	hub := transport.NewHub(2, 4)
	factory := agent.NewFactory(1)

	authority := resourcemgr.NewICUAuthority(hub.For(0), 1)
	proxy := resourcemgr.NewICUProxy(hub.For(1))

	a := factory.New(agent.KindPatient)
	b := factory.New(agent.KindPatient)
	proxy.RequestBed(a)
	proxy.RequestBed(b)

	done := make(chan error, 1)
	go func() { done <- authority.Sync() }()
	require.NoError(t, proxy.Sync())
	require.NoError(t, <-done)

	admittedA, okA := proxy.GetResponse(a)
	admittedB, okB := proxy.GetResponse(b)
	require.True(t, okA)
	require.True(t, okB)
	assert.True(t, admittedA)
	assert.False(t, admittedB, "single-bed ICU must reject the second concurrent request")
	assert.Equal(t, uint32(1), authority.ReservedBeds())

	require.NoError(t, authority.Release())
	assert.Equal(t, uint32(0), authority.ReservedBeds())
}
