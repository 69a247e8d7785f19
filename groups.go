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
	"strconv"
	"strings"
)

// occurrencesPerGroup is the fixed number of newline-prefixed keyword
// occurrences each file-internal channel group contributes: the companion
// section's START_LIST/END_LIST pair followed by the payload section's pair.
// The payload lies between the third and fourth occurrence of a run.
const occurrencesPerGroup = 4

// scanGroups collects the payload lines of every channel-group run of the
// given keyword, concatenated across groups, capped at maxRows in total.
// Marker lines (START_LIST headers and the terminal END_LIST) are dropped.
func scanGroups(text, keyword string, maxRows int) []string {
	needle := "\n" + keyword
	var offsets []int
	for from := 0; ; {
		ix := strings.Index(text[from:], needle)
		if ix < 0 {
			break
		}
		offsets = append(offsets, from+ix)
		from += ix + len(needle)
	}

	var rows []string
	groups := len(offsets) / occurrencesPerGroup
	for g := 0; g < groups && len(rows) < maxRows; g++ {
		start := offsets[g*occurrencesPerGroup+2]
		end := offsets[g*occurrencesPerGroup+3]
		for _, ln := range strings.Split(text[start:end], "\n") {
			ln = strings.TrimSpace(ln)
			if ln == "" || strings.Contains(ln, "START_LIST") || strings.Contains(ln, "END_LIST") {
				continue
			}
			rows = append(rows, ln)
			if len(rows) == maxRows {
				break
			}
		}
	}
	return rows
}

// channelLabels returns one label per channel. Synthetic "EEG{i}" defaults
// are assigned first; file-supplied labels override them in order. A missing
// label source leaves the defaults in place.
func channelLabels(text string, channels int) []string {
	labels := make([]string, channels)
	for i := range labels {
		labels[i] = fmt.Sprintf("EEG%d", i+1)
	}
	for i, row := range scanGroups(text, "LABELS", channels) {
		labels[i] = row
	}
	return labels
}

// sensorPositions returns the per-channel sensor vectors from the SENSORS
// groups. A valid row has 3 components (position) or 6 (position and
// orientation); other rows are skipped. A missing sensor source yields an
// empty collection.
func sensorPositions(text string, channels int) [][]float64 {
	rows := scanGroups(text, "SENSORS", channels)

	var sensors [][]float64
	for _, row := range rows {
		fields := strings.Fields(row)
		if len(fields) != 3 && len(fields) != 6 {
			continue
		}
		vec := make([]float64, 0, len(fields))
		ok := true
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				ok = false
				break
			}
			vec = append(vec, v)
		}
		if ok {
			sensors = append(sensors, vec)
		}
	}
	return sensors
}
