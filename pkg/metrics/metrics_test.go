package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("x_"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the configured names", func() {
				So(m, ShouldNotBeNil)
				m.matchesAwarded.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_x_matches_awarded_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics on duplicate collectors", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestRecordingFunctions(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording pairing outcomes", func() {
			before := value(globalManager.matchesAwarded)
			RecordShakeReceived()
			RecordShakeUnpaired()
			RecordMatchAwarded()
			RecordMatchRepeat()
			RecordShakeRejected("unauthorized")
			RecordPartnerCreditError()
			RecordShakeLatency(3.5)

			Convey("Then counters advance", func() {
				So(value(globalManager.matchesAwarded), ShouldEqual, before+1)
				So(value(globalManager.shakesRejected.WithLabelValues("unauthorized")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When observing backend operations", func() {
			before := value(globalManager.backendErrors.WithLabelValues("redis", "mark_pair"))
			ObserveBackend("redis", "mark_pair", time.Now(), nil)
			ObserveBackend("redis", "mark_pair", time.Now(), errors.New("connection refused"))

			Convey("Then only failures are counted as errors", func() {
				So(value(globalManager.backendErrors.WithLabelValues("redis", "mark_pair")), ShouldEqual, before+1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateParticipants(42)
			UpdateWindowEvents(7)
			UpdateQueueSize(3)
			UpdateQueueCapacity(1024)
			UpdateWorkerCount(2)
			UpdateSystemMemoryUsage(1 << 20)
			UpdateSystemGoroutineCount(10)

			Convey("Then gauges hold the last value", func() {
				So(value(globalManager.participants), ShouldEqual, 42)
				So(value(globalManager.windowEvents), ShouldEqual, 7)
				So(value(globalManager.queueCapacity), ShouldEqual, 1024)
			})
		})

		Convey("When recording HTTP and notice metrics", func() {
			So(func() {
				RecordHTTPRequest("shake", "POST", "200")
				RecordHTTPRequestDuration("shake", "POST", "200", 12)
				RecordErrorByType("client_error", "medium")
				RecordErrorByEndpoint("shake", "POST", "client_error")
				RecordQueueEnqueue()
				RecordQueueDropped("queue_full")
				RecordNoticeDelivered(1.2)
				RecordNoticeError()
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then every metric uses the clink namespace", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "clink_pairing_"), ShouldBeTrue)
				}
			})
		})
	})
}

func value(m prometheus.Metric) float64 {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return -1
	}
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}
