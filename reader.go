// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package curry decodes the Curry multi-file bioelectric recording format:
// a primary sample stream (.cdt or legacy .dat) accompanied by parameter,
// label/sensor, and event sidecar files. The decoder reconciles all sources
// into a single Record with a sample-accurate, monotonic event timeline.
//
// The compressed variant of the format is detected and rejected. There is no
// writer.
package curry

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Option configures a decode invocation.
type Option func(*decoder)

// WithLogger sets the logger used for advisory and diagnostic output.
// The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *decoder) {
		d.log = log
	}
}

type decoder struct {
	log *zap.Logger
}

// triggerLabel designates the channel whose amplitude encodes event codes
// rather than a physiological signal.
const triggerLabel = "TRIGGER"

// DecodeFile decodes the recording whose primary data file is at path
// (modern .cdt or legacy .dat) together with its sidecar files, resolved by
// the extension conventions of each format generation. Fatal conditions
// return an error wrapping one of this package's sentinel errors; advisory
// conditions are collected on the returned Record and logged.
func DecodeFile(path string, opts ...Option) (*Record, error) {
	d := &decoder{log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d.decode(path)
}

func (d *decoder) decode(path string) (*Record, error) {
	legacy := strings.EqualFold(extension(path), ".dat")

	paramText, err := d.readParameterText(path, legacy)
	if err != nil {
		return nil, err
	}
	params, err := parseParameters(paramText)
	if err != nil {
		return nil, err
	}
	d.log.Debug("parameters resolved",
		zap.Int("channels", params.numChannels),
		zap.Int("samples", params.numSamples),
		zap.Int("trials", params.numTrials),
		zap.Float64("sample_rate_hz", params.sampleRate),
		zap.Bool("ascii", params.ascii),
		zap.Bool("multiplexed", params.multiplexed))

	rec := &Record{
		Channels:          params.numChannels,
		Trials:            params.numTrials,
		SampleRate:        params.sampleRate,
		TriggerOffsetUsec: params.triggerOffsetUsec,
	}

	// Labels and sensor positions live in the parameter file for modern
	// recordings and in a dedicated .rs3 file for legacy ones.
	labelText := paramText
	if legacy {
		b, err := os.ReadFile(basename(path) + ".rs3")
		if err != nil {
			rec.addAdvisory(d.log, Advisory{
				Code:    AdvisoryMissingLabels,
				Message: fmt.Sprintf("label file unreadable (%v); using synthetic labels and no sensor positions", err),
			})
			labelText = ""
		} else {
			labelText = string(b)
		}
	}
	rec.Labels = channelLabels(labelText, params.numChannels)
	rec.Sensors = sensorPositions(labelText, params.numChannels)

	rec.Impedances = parseImpedances(paramText, params.numChannels)
	rec.Epochs, rec.EpochLabels = parseEpochRecords(paramText)

	matrix, advisories, err := d.readSamples(path, params)
	if err != nil {
		return nil, err
	}
	for _, a := range advisories {
		rec.addAdvisory(d.log, a)
	}
	rec.Data = matrix.data
	rec.Samples = matrix.samples

	trigger := rec.triggerChannel()

	var epochEvents []Event
	if params.numTrials > 1 {
		epochEvents = reconstructEpochs(rec.Samples, rec.Trials, rec.Epochs,
			rec.TriggerOffsetUsec, rec.SampleRate)
		if trigger != nil {
			stampTrigger(trigger, epochEvents)
		}
	}

	fileEvents, annotations := d.readEventFile(path, legacy)
	rec.Annotations = annotations

	events, eventAdvisories := reconcileEvents(fileEvents, epochEvents, trigger, rec.Samples*rec.Trials)
	for _, a := range eventAdvisories {
		rec.addAdvisory(d.log, a)
	}
	rec.Events = events
	if trigger != nil {
		rewriteTrigger(trigger, events)
	}

	return rec, nil
}

// readParameterText loads the parameter sidecar, trying each historical
// extension in turn. Each candidate is fully read and released before the
// next is attempted. An unreadable parameter file is fatal.
func (d *decoder) readParameterText(path string, legacy bool) (string, error) {
	candidates := []string{path + ".dpa", path + ".dpo"}
	if legacy {
		candidates = []string{basename(path) + ".dap"}
	}

	var firstErr error
	for _, p := range candidates {
		b, err := os.ReadFile(p)
		if err == nil {
			d.log.Debug("parameter file loaded", zap.String("path", p))
			return string(b), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", fmt.Errorf("%w: %v", ErrMissingParameters, firstErr)
}

// readSamples opens the primary data file and decodes the sample stream,
// using the file size for count inference when the declared count is absent.
func (d *decoder) readSamples(path string, params parameters) (sampleMatrix, []Advisory, error) {
	f, err := os.Open(path)
	if err != nil {
		return sampleMatrix{}, nil, fmt.Errorf("error opening data file: %w", err)
	}
	defer f.Close()

	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	return readSampleMatrix(f, size, params)
}

// readEventFile loads and parses the event sidecar, trying each historical
// extension in turn. A missing event file is not an error; the recording
// simply has no explicit events.
func (d *decoder) readEventFile(path string, legacy bool) ([]Event, []string) {
	candidates := []string{path + ".cef", path + ".ceo"}
	if legacy {
		candidates = []string{basename(path) + ".cef", basename(path) + ".ceo"}
	}

	for _, p := range candidates {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		d.log.Debug("event file loaded", zap.String("path", p))
		return parseEventText(string(b))
	}
	d.log.Debug("no event file found", zap.Strings("tried", candidates))
	return nil, nil
}

// parseEventText decodes the NUMBER_LIST rows of an event file into events
// and pairs them with the REMARK_LIST annotations by list order. The counts
// need not match; unmatched annotations are still returned.
func parseEventText(text string) ([]Event, []string) {
	annotations := sectionLines(listSection(text, "REMARK_LIST"))

	rows := sectionLines(listSection(text, "NUMBER_LIST"))
	var events []Event
	for _, row := range rows {
		fields := strings.Fields(row)
		if len(fields) == 0 {
			continue
		}
		ev := Event{Sample: floatField(fields, 0)}
		ev.Type = intField(fields, 1)
		ev.EpochStart = int(ev.Sample)
		ev.EpochEnd = int(ev.Sample)
		if len(fields) > 2 {
			ev.EpochStart = intField(fields, 2)
		}
		if len(fields) > 3 {
			ev.EpochEnd = intField(fields, 3)
		}
		if len(events) < len(annotations) {
			ev.Annotation = annotations[len(events)]
		}
		events = append(events, ev)
	}
	return events, annotations
}

// triggerChannel returns the row of the designated trigger channel, or nil
// when no channel carries the trigger label.
func (r *Record) triggerChannel() []float32 {
	for i, label := range r.Labels {
		if strings.EqualFold(strings.TrimSpace(label), triggerLabel) && i < len(r.Data) {
			return r.Data[i]
		}
	}
	return nil
}

func (r *Record) addAdvisory(log *zap.Logger, a Advisory) {
	log.Warn(a.Message, zap.String("code", string(a.Code)))
	r.Advisories = append(r.Advisories, a)
}

// extension returns the final dot-suffix of path, including the dot.
func extension(path string) string {
	if ix := strings.LastIndexByte(path, '.'); ix >= 0 {
		return path[ix:]
	}
	return ""
}

// basename strips the final dot-suffix of path.
func basename(path string) string {
	if ix := strings.LastIndexByte(path, '.'); ix >= 0 {
		return path[:ix]
	}
	return path
}
