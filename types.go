// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package curry

import (
	"math"
	"time"
)

// Record is a fully decoded Curry recording: the sample matrix plus all
// sidecar metadata, reconciled into one consistent view. A Record is built
// once per decode and is not mutated afterwards.
type Record struct {
	// Data holds the sample matrix, one row per channel, Channels rows of
	// Samples*Trials single-precision amplitudes each. Epoched recordings
	// are flattened to a continuous stream; trial structure survives only
	// as boundary events in Events.
	Data [][]float32

	Channels          int     // Number of data channels
	Samples           int     // Samples per channel per trial
	Trials            int     // Number of trials (1 for continuous recordings)
	SampleRate        float64 // Sampling frequency in Hz
	TriggerOffsetUsec float64 // Trigger offset within a trial, in microseconds

	Labels  []string    // Per-channel labels, e.g. "Fz", "EEG3", "Trigger"
	Sensors [][]float64 // Per-channel sensor positions, 3 or 6 components each

	// Events is the reconciled event timeline, sorted ascending by sample
	// index. Indices are integers except where the collision fallback
	// produced a half-integer.
	Events []Event

	Annotations []string      // Free-text remarks, paired with Events by list order
	Epochs      []EpochRecord // Per-trial metadata for epoched recordings
	EpochLabels []string      // Optional per-trial labels

	// Impedances holds the impedance-check history: one row per historical
	// reading (oldest first, at most 10), one column per channel. Missing
	// readings are NaN.
	Impedances [][]float64

	// Advisories lists the non-fatal conditions encountered while decoding.
	Advisories []Advisory
}

// Duration returns the total covered recording time across all trials.
func (r *Record) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	secs := float64(r.Samples*r.Trials) / r.SampleRate
	return time.Duration(math.Round(secs * float64(time.Second)))
}

// Event is a single marker on the reconciled timeline.
type Event struct {
	// Sample is the resolved sample index. It is an integer value except
	// when collision resolution had to fall back to a half-integer.
	Sample float64

	// Type is the event code. It is meaningless when Boundary is set.
	Type int

	// Boundary marks a synthetic trial/segment transition inserted when
	// epoched data was flattened to a continuous stream.
	Boundary bool

	EpochStart int // First sample of the originating epoch
	EpochEnd   int // Last sample of the originating epoch

	// Annotation is the free-text remark paired with this event, if any.
	Annotation string
}

// Time converts the event's sample index to an offset from recording start.
func (e Event) Time(sampleRate float64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(e.Sample / sampleRate * float64(time.Second))
}

// EpochRecord carries the per-trial metadata of an epoched recording.
type EpochRecord struct {
	AverageCount int     // Number of averages accumulated into the trial
	TotalEpochs  int     // Total epochs in the originating average
	Type         int     // Classification code stamped at the trial's anchor sample
	Accept       int     // Accept flag
	Correct      int     // Correct flag
	Response     int     // Response code
	ResponseTime float64 // Response time
	Label        string  // Optional trial label
}

// AdvisoryCode identifies a class of non-fatal decode condition.
type AdvisoryCode string

const (
	// AdvisoryTruncatedRead reports a sample stream shorter than declared;
	// the declared count was corrected to the actual count.
	AdvisoryTruncatedRead AdvisoryCode = "truncated-read"

	// AdvisoryMissingLabels reports an absent label/sensor source; synthetic
	// labels were substituted and the sensor set left empty.
	AdvisoryMissingLabels AdvisoryCode = "missing-labels"

	// AdvisoryEventCollision reports an event collision that exhausted the
	// probe sequence and was placed at a half-integer index.
	AdvisoryEventCollision AdvisoryCode = "event-collision"
)

// Advisory is a non-fatal decode notice. Decoding proceeded with a
// best-effort recovery; presentation is the caller's concern.
type Advisory struct {
	Code    AdvisoryCode
	Message string
}

func (a Advisory) String() string {
	return string(a.Code) + ": " + a.Message
}
