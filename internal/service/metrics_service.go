package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the scheduler's domain counters. One instance per
// process; registering twice on the same registry panics by Prometheus
// convention.
type Metrics struct {
	lessonsBooked      prometheus.Counter
	lessonsRescheduled prometheus.Counter
	lessonsCancelled   prometheus.Counter
	bookingConflicts   *prometheus.CounterVec
	allocationRetries  prometheus.Counter
	timetableCreated   prometheus.Counter
}

// NewMetrics builds and registers the domain counters on the registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lessonsBooked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driveschool_lessons_booked_total",
			Help: "Lessons booked successfully.",
		}),
		lessonsRescheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driveschool_lessons_rescheduled_total",
			Help: "Lessons moved to a new window.",
		}),
		lessonsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driveschool_lessons_cancelled_total",
			Help: "Lessons cancelled.",
		}),
		bookingConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driveschool_booking_conflicts_total",
			Help: "Bookings rejected due to a calendar conflict, by side.",
		}, []string{"side"}),
		allocationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driveschool_vehicle_allocation_retries_total",
			Help: "Vehicle reservations retried after losing a storage race.",
		}),
		timetableCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driveschool_timetable_lessons_created_total",
			Help: "Lessons created by timetable generation runs.",
		}),
	}
	reg.MustRegister(
		m.lessonsBooked,
		m.lessonsRescheduled,
		m.lessonsCancelled,
		m.bookingConflicts,
		m.allocationRetries,
		m.timetableCreated,
	)
	return m
}

// LessonBooked increments the booking counter.
func (m *Metrics) LessonBooked() { m.lessonsBooked.Inc() }

// LessonRescheduled increments the reschedule counter.
func (m *Metrics) LessonRescheduled() { m.lessonsRescheduled.Inc() }

// LessonCancelled increments the cancellation counter.
func (m *Metrics) LessonCancelled() { m.lessonsCancelled.Inc() }

// BookingConflict records a rejected booking labelled by the conflicting
// side: tutor, student or both.
func (m *Metrics) BookingConflict(side string) { m.bookingConflicts.WithLabelValues(side).Inc() }

// AllocationRetry records a vehicle reservation retried after a race.
func (m *Metrics) AllocationRetry() { m.allocationRetries.Inc() }

// TimetableCreated adds n lessons created by a timetable run.
func (m *Metrics) TimetableCreated(n int) { m.timetableCreated.Add(float64(n)) }
