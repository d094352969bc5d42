// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnssnav_frames_total",
			Help: "Total number of navigation frames handled, by message type and result.",
		},
		[]string{"type", "result"},
	)

	subframesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnssnav_subframes_dropped_total",
			Help: "Total number of subframes discarded before decoding.",
		},
		[]string{"reason"},
	)

	recordsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnssnav_records_emitted_total",
			Help: "Total number of decoded records delivered to listeners.",
		},
		[]string{"kind"},
	)

	satellitesTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gnssnav_satellites_tracked",
			Help: "Number of satellites with decoder state.",
		},
	)
)

func init() {
	prometheus.MustRegister(framesTotal)
	prometheus.MustRegister(subframesDroppedTotal)
	prometheus.MustRegister(recordsEmittedTotal)
	prometheus.MustRegister(satellitesTracked)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

var (
	knownResults = []string{"ok", "ignored", "malformed", "parity"}
	knownReasons = []string{"evicted", "malformed", "parity", "idle"}
	knownKinds   = []string{"ephemeris", "almanac", "iono_utc"}
)

// normalizeLabel keeps label cardinality bounded: unknown values collapse to "other".
func normalizeLabel(v string, known []string) string {
	for _, k := range known {
		if v == k {
			return v
		}
	}
	return "other"
}

// FrameHandled counts one frame of the given message type.
func FrameHandled(msgType, result string) {
	framesTotal.WithLabelValues(msgType, normalizeLabel(result, knownResults)).Inc()
}

// SubframeDropped counts one discarded subframe.
func SubframeDropped(reason string) {
	subframesDroppedTotal.WithLabelValues(normalizeLabel(reason, knownReasons)).Inc()
}

// RecordEmitted counts one record delivered to a listener.
func RecordEmitted(kind string) {
	recordsEmittedTotal.WithLabelValues(normalizeLabel(kind, knownKinds)).Inc()
}

// SetSatellitesTracked sets the number of satellites with decoder state.
func SetSatellitesTracked(n int) {
	satellitesTracked.Set(float64(n))
}
