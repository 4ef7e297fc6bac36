package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "l2network"

var (
	VlanReservations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "vlan",
		Name:      "reservations_total",
		Help:      "VLAN ID reservations by outcome.",
	}, []string{"outcome"})

	VlanReleases = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "vlan",
		Name:      "releases_total",
		Help:      "VLAN IDs returned to the pool.",
	})

	MemberTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "securitygroup",
		Name:      "member_tasks_total",
		Help:      "Security group membership tasks by terminal state.",
	}, []string{"state"})

	MemberTaskAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "securitygroup",
		Name:      "member_task_attempts",
		Help:      "Attempts used by finished security group membership tasks.",
		Buckets:   prometheus.LinearBuckets(1, 1, 5),
	})
)

const (
	OutcomeReserved  = "reserved"
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
)

// Register adds every collector of this package to r.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{VlanReservations, VlanReleases, MemberTasks, MemberTaskAttempts} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
