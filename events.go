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
	"fmt"
	"math"
	"sort"
)

// collisionProbes is the fixed probe sequence tried when an incoming event
// targets an occupied index and differs in type. If every probe is occupied
// too, the event lands at originalIndex-0.5 with an advisory.
var collisionProbes = [...]int{1, -1, 2, -2}

// timeline accumulates events during reconciliation. Integer indices of
// typed events are tracked for collision resolution; boundary markers are
// segment metadata, not trigger codes, and do not occupy index slots.
type timeline struct {
	slots      map[int]int
	typed      []Event
	boundaries []Event
	advisories []Advisory
}

func newTimeline() *timeline {
	return &timeline{slots: make(map[int]int)}
}

// insert places a typed event at index ix, applying the collision policy:
// an occupant of the same type swallows the incoming event as a duplicate;
// otherwise the probe sequence is tried in order and the first free index
// wins; an exhausted probe sequence falls back to the half-integer below the
// original index, surfaced as an advisory rather than a dropped event.
func (tl *timeline) insert(ix int, ev Event) {
	occupant, occupied := tl.slots[ix]
	if !occupied {
		tl.place(ix, ev)
		return
	}
	if occupant == ev.Type {
		return
	}
	for _, off := range collisionProbes {
		if _, taken := tl.slots[ix+off]; !taken {
			tl.place(ix+off, ev)
			return
		}
	}
	ev.Sample = float64(ix) - 0.5
	tl.typed = append(tl.typed, ev)
	tl.advisories = append(tl.advisories, Advisory{
		Code:    AdvisoryEventCollision,
		Message: fmt.Sprintf("unresolved collision at sample %d; event type %d placed at %g", ix, ev.Type, ev.Sample),
	})
}

func (tl *timeline) place(ix int, ev Event) {
	tl.slots[ix] = ev.Type
	ev.Sample = float64(ix)
	tl.typed = append(tl.typed, ev)
}

// reconcileEvents merges the three event sources into one monotonic,
// collision-resolved timeline:
//
//   - explicit events from the event file, snapped to the nearest sample;
//   - synthetic boundary/classification events from epoch reconstruction;
//   - events embedded in the trigger channel's waveform.
//
// The merge is deterministic in the contents of the three sources and never
// fails: every conflict resolves via the collision policy. totalSamples
// bounds the index axis that file events are snapped onto.
func reconcileEvents(fileEvents, epochEvents []Event, trigger []float32, totalSamples int) ([]Event, []Advisory) {
	tl := newTimeline()

	// Fixed processing order keeps the merge independent of input order.
	for _, ev := range sortedBySampleType(fileEvents) {
		tl.insert(nearestIndex(ev.Sample, totalSamples), ev)
	}
	for _, ev := range epochEvents {
		if ev.Boundary {
			tl.boundaries = append(tl.boundaries, ev)
			continue
		}
		tl.insert(int(ev.Sample), ev)
	}
	for _, ev := range triggerEvents(trigger) {
		tl.insert(int(ev.Sample), ev)
	}

	events := append(tl.typed, tl.boundaries...)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Sample != events[j].Sample {
			return events[i].Sample < events[j].Sample
		}
		// Boundary markers precede typed events sharing a sample.
		return events[i].Boundary && !events[j].Boundary
	})
	return events, tl.advisories
}

// triggerEvents extracts candidate events from the trigger channel's
// waveform. Any strictly positive sample is a candidate, typed by its value,
// except that a value held across consecutive samples counts once, at its
// first sample.
func triggerEvents(trigger []float32) []Event {
	var events []Event
	for i, v := range trigger {
		if v <= 0 {
			continue
		}
		if i > 0 && trigger[i-1] == v {
			continue
		}
		events = append(events, Event{
			Sample:     float64(i),
			Type:       int(v),
			EpochStart: i,
			EpochEnd:   i,
		})
	}
	return events
}

// rewriteTrigger regenerates the trigger channel's waveform from the final
// timeline so channel data and event metadata stay mutually consistent:
// every non-boundary, integer-indexed event stamps its type back at its
// resolved index.
func rewriteTrigger(trigger []float32, events []Event) {
	for i := range trigger {
		trigger[i] = 0
	}
	for _, ev := range events {
		if ev.Boundary {
			continue
		}
		ix := int(ev.Sample)
		if float64(ix) != ev.Sample {
			continue // half-integer fallback, off the sample grid
		}
		if ix >= 0 && ix < len(trigger) {
			trigger[ix] = float32(ev.Type)
		}
	}
}

// nearestIndex snaps a raw sample value onto the canonical index axis of n
// samples by minimal absolute difference; an exact tie resolves to the lower
// index.
func nearestIndex(v float64, n int) int {
	lo := math.Floor(v)
	ix := int(lo)
	if v-lo > 0.5 {
		ix++
	}
	if ix < 0 {
		ix = 0
	}
	if n > 0 && ix >= n {
		ix = n - 1
	}
	return ix
}

// sortedBySampleType returns a copy of events ordered by sample then type,
// canonicalizing the insertion order of a source set.
func sortedBySampleType(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sample != out[j].Sample {
			return out[i].Sample < out[j].Sample
		}
		return out[i].Type < out[j].Type
	})
	return out
}
