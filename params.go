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
	"strconv"
	"strings"
)

// compressedGUID is the DataGuid value Curry writes into parameter files of
// the compressed variant. Its presence aborts decoding before anything else
// is parsed.
const compressedGUID = "{2912E8D8-F5C8-4E25-A8E7-A1385967DA09}"

// fieldKind enumerates the semantic parameter fields. Every historical
// spelling of a token maps onto exactly one kind.
type fieldKind int

const (
	fieldNumSamples fieldKind = iota
	fieldNumChannels
	fieldNumTrials
	fieldSampleFreqHz
	fieldTriggerOffsetUsec
	fieldDataFormat
	fieldDataSampOrder
	fieldSampleTimeUsec
	fieldKindCount
)

// tokenSpec binds one token spelling to its semantic field. Tokens with a
// non-empty marker are flags: the value is 1 when the marker word appears
// after the equals sign, 0 otherwise. All other tokens parse as the first
// floating-point number after the equals sign.
type tokenSpec struct {
	kind   fieldKind
	name   string
	marker string
}

var tokenTable = []tokenSpec{
	{fieldNumSamples, "NumSamples", ""},
	{fieldNumSamples, "NUM_SAMPLES", ""},
	{fieldNumChannels, "NumChannels", ""},
	{fieldNumChannels, "NUM_CHANNELS", ""},
	{fieldNumTrials, "NumTrials", ""},
	{fieldNumTrials, "NUM_TRIALS", ""},
	{fieldSampleFreqHz, "SampleFreqHz", ""},
	{fieldSampleFreqHz, "SAMPLE_FREQ_HZ", ""},
	{fieldTriggerOffsetUsec, "TriggerOffsetUsec", ""},
	{fieldTriggerOffsetUsec, "TRIGGER_OFFSET_USEC", ""},
	{fieldDataFormat, "DataFormat", "ASCII"},
	{fieldDataFormat, "DATA_FORMAT", "ASCII"},
	{fieldDataSampOrder, "DataSampOrder", "MULTIPLEXED"},
	{fieldDataSampOrder, "DATA_SAMP_ORDER", "MULTIPLEXED"},
	{fieldSampleTimeUsec, "SampleTimeUsec", ""},
	{fieldSampleTimeUsec, "SAMPLE_TIME_USEC", ""},
}

// parameters holds the scalar parameters every later decode stage consumes.
type parameters struct {
	numSamples        int // -1 when absent; inferred from file size later
	numChannels       int
	numTrials         int
	sampleRate        float64
	triggerOffsetUsec float64
	sampleTimeUsec    float64
	ascii             bool
	multiplexed       bool
}

// parseParameters resolves the recognized tokens of a raw parameter text
// into one parameters value. A well-formed file populates at most one
// spelling of each field; the paired spellings are merged by addition.
func parseParameters(text string) (parameters, error) {
	if isCompressed(text) {
		return parameters{}, fmt.Errorf("parameter file: %w", ErrCompressedFormat)
	}

	var vals [fieldKindCount]float64
	for _, tok := range tokenTable {
		vals[tok.kind] += tokenValue(text, tok)
	}

	p := parameters{
		numSamples:        int(vals[fieldNumSamples]),
		numChannels:       int(vals[fieldNumChannels]),
		numTrials:         int(vals[fieldNumTrials]),
		sampleRate:        vals[fieldSampleFreqHz],
		triggerOffsetUsec: vals[fieldTriggerOffsetUsec],
		sampleTimeUsec:    vals[fieldSampleTimeUsec],
		ascii:             vals[fieldDataFormat] != 0,
		multiplexed:       vals[fieldDataSampOrder] != 0,
	}

	// Older files carry the sample period instead of the rate.
	if p.sampleRate == 0 && p.sampleTimeUsec > 0 {
		p.sampleRate = 1e6 / p.sampleTimeUsec
	}
	if p.sampleRate <= 0 {
		return parameters{}, fmt.Errorf("parameter file: %w", ErrBadSampleRate)
	}
	if p.numChannels < 0 {
		p.numChannels = 0
	}
	if p.numTrials < 1 {
		p.numTrials = 1
	}
	return p, nil
}

// isCompressed reports whether the parameter text marks the compressed
// variant of the format.
func isCompressed(text string) bool {
	ix := strings.Index(text, "DataGuid")
	if ix < 0 {
		return false
	}
	return strings.Contains(rawTokenValue(text[ix+len("DataGuid"):]), compressedGUID)
}

// tokenValue extracts the value of a token's first textual occurrence.
// Absent or unparsable tokens yield zero.
func tokenValue(text string, tok tokenSpec) float64 {
	ix := strings.Index(text, tok.name)
	if ix < 0 {
		return 0
	}
	raw := rawTokenValue(text[ix+len(tok.name):])
	if tok.marker != "" {
		if strings.Contains(raw, tok.marker) {
			return 1
		}
		return 0
	}
	return firstFloat(raw)
}

// rawTokenValue returns the text between the equals sign and the end of the
// line, trimmed. Missing equals sign yields "".
func rawTokenValue(rest string) string {
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return ""
	}
	rest = rest[eq+1:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

// firstFloat returns the first whitespace-separated field that parses as a
// floating-point number, or zero when there is none.
func firstFloat(s string) float64 {
	for _, f := range strings.Fields(s) {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			return v
		}
	}
	return 0
}

// listSection returns the text between the "NAME START_LIST" and
// "NAME END_LIST" markers. A missing marker yields "" rather than an error;
// an absent optional section is an empty collection, not a failure.
func listSection(text, name string) string {
	start := strings.Index(text, name+" START_LIST")
	if start < 0 {
		return ""
	}
	start += len(name + " START_LIST")
	end := strings.Index(text[start:], name+" END_LIST")
	if end < 0 {
		return ""
	}
	return text[start : start+end]
}

// sectionFloats parses every whitespace-separated numeric field of a list
// section, skipping anything unparsable.
func sectionFloats(section string) []float64 {
	fields := strings.Fields(section)

	// First pass counts, second pass fills a pre-sized slice.
	n := 0
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f, 64); err == nil {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	vals := make([]float64, 0, n)
	for _, f := range fields {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			vals = append(vals, v)
		}
	}
	return vals
}

// sectionLines returns the non-empty trimmed lines of a list section.
func sectionLines(section string) []string {
	var lines []string
	for _, ln := range strings.Split(section, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

// parseImpedances reshapes the flat impedance list into the per-reading
// history: one row per impedance check (oldest first, at most 10 retained),
// one column per channel. The -1 sentinel becomes NaN.
func parseImpedances(text string, channels int) [][]float64 {
	if channels <= 0 {
		return nil
	}
	vals := sectionFloats(listSection(text, "IMPEDANCE_VALUES"))
	readings := len(vals) / channels
	if readings == 0 {
		return nil
	}
	if readings > maxImpedanceReadings {
		// History retains the most recent readings only.
		vals = vals[(readings-maxImpedanceReadings)*channels:]
		readings = maxImpedanceReadings
	}

	hist := make([][]float64, readings)
	for r := range hist {
		row := make([]float64, channels)
		for c := range row {
			v := vals[r*channels+c]
			if v == impedanceMissing {
				v = math.NaN()
			}
			row[c] = v
		}
		hist[r] = row
	}
	return hist
}

// impedanceMissing is the sidecar sentinel for an absent impedance reading.
const impedanceMissing = -1

// maxImpedanceReadings bounds the retained impedance-check history.
const maxImpedanceReadings = 10

// parseEpochRecords decodes the EPOCH_INFORMATION rows, one per trial, and
// pairs them with EPOCH_LABELS by position. Rows shorter than the full field
// set leave the remaining fields zero.
func parseEpochRecords(text string) ([]EpochRecord, []string) {
	labels := sectionLines(listSection(text, "EPOCH_LABELS"))

	rows := sectionLines(listSection(text, "EPOCH_INFORMATION"))
	if len(rows) == 0 {
		return nil, labels
	}
	epochs := make([]EpochRecord, 0, len(rows))
	for i, row := range rows {
		f := strings.Fields(row)
		var e EpochRecord
		e.AverageCount = intField(f, 0)
		e.TotalEpochs = intField(f, 1)
		e.Type = intField(f, 2)
		e.Accept = intField(f, 3)
		e.Correct = intField(f, 4)
		e.Response = intField(f, 5)
		e.ResponseTime = floatField(f, 6)
		if i < len(labels) {
			e.Label = labels[i]
		}
		epochs = append(epochs, e)
	}
	return epochs, labels
}

func floatField(fields []string, i int) float64 {
	if i >= len(fields) {
		return 0
	}
	v, err := strconv.ParseFloat(fields[i], 64)
	if err != nil {
		return 0
	}
	return v
}

func intField(fields []string, i int) int {
	return int(floatField(fields, i))
}
