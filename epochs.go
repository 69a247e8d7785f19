// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package curry

// anchorSample returns the index of the first non-negative time value on the
// per-trial time axis, i.e. the sample of nominal zero time. The axis starts
// at the trigger offset and advances one sample period per step. When every
// time value is negative the anchor stays at zero.
func anchorSample(samples int, triggerOffsetUsec, sampleRate float64) int {
	if sampleRate <= 0 {
		return 0
	}
	periodUsec := 1e6 / sampleRate
	for i := 0; i < samples; i++ {
		if triggerOffsetUsec+float64(i)*periodUsec >= 0 {
			return i
		}
	}
	return 0
}

// reconstructEpochs derives the synthetic events of a trial-epoched
// recording: one classification event per trial with epoch metadata, stamped
// at the trial's anchor sample, and one boundary marker at the end of every
// trial except the last. The sample matrix itself stays flattened as one
// continuous buffer; the trial structure survives only in these events.
func reconstructEpochs(samples, trials int, epochs []EpochRecord, triggerOffsetUsec, sampleRate float64) []Event {
	if trials < 2 {
		return nil
	}
	anchor := anchorSample(samples, triggerOffsetUsec, sampleRate)

	events := make([]Event, 0, 2*trials-1)
	for t := 0; t < trials; t++ {
		start := t * samples
		if t < len(epochs) {
			events = append(events, Event{
				Sample:     float64(start + anchor),
				Type:       epochs[t].Type,
				EpochStart: start,
				EpochEnd:   start + samples - 1,
			})
		}
		if t < trials-1 {
			events = append(events, Event{
				Sample:   float64(start + samples),
				Boundary: true,
			})
		}
	}
	return events
}

// stampTrigger writes the classification codes of the synthetic epoch events
// onto the designated trigger channel, giving epoched files the same
// trigger-trace shape as continuous ones before reconciliation.
func stampTrigger(trigger []float32, events []Event) {
	for _, e := range events {
		if e.Boundary {
			continue
		}
		if ix := int(e.Sample); ix >= 0 && ix < len(trigger) {
			trigger[ix] = float32(e.Type)
		}
	}
}
