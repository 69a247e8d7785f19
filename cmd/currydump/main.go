// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command currydump decodes a Curry recording and prints a summary of the
// result. It is the thin programmatic front end over the decoder library;
// interactive selection and plotting belong to other tools.
package main

import (
	"fmt"
	"os"

	"github.com/OpenPSG/curry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	showEvents bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "currydump <recording.cdt|recording.dat>",
	Short: "Decode a Curry recording and print a summary",
	Long: `Decodes a Curry multi-file recording (primary data file plus parameter,
label, and event sidecars) and prints the resolved metadata and reconciled
event timeline.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDump,
}

func init() {
	rootCmd.Flags().BoolVar(&showEvents, "events", false, "include the full event timeline in the output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log decode diagnostics to stderr")
}

// summary is the YAML-serialized view of a decoded record.
type summary struct {
	Channels          int      `yaml:"channels"`
	Samples           int      `yaml:"samples_per_trial"`
	Trials            int      `yaml:"trials"`
	SampleRateHz      float64  `yaml:"sample_rate_hz"`
	TriggerOffsetUsec float64  `yaml:"trigger_offset_usec"`
	Duration          string   `yaml:"duration"`
	Labels            []string `yaml:"labels,omitempty"`
	SensorCount       int      `yaml:"sensor_count"`
	EventCount        int      `yaml:"event_count"`
	EpochCount        int      `yaml:"epoch_count,omitempty"`
	ImpedanceReadings int      `yaml:"impedance_readings,omitempty"`
	Advisories        []string `yaml:"advisories,omitempty"`

	Events []eventSummary `yaml:"events,omitempty"`
}

type eventSummary struct {
	Sample     float64 `yaml:"sample"`
	Type       int     `yaml:"type,omitempty"`
	Boundary   bool    `yaml:"boundary,omitempty"`
	Annotation string  `yaml:"annotation,omitempty"`
}

func runDump(cmd *cobra.Command, args []string) error {
	log := zap.NewNop()
	if verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("error building logger: %w", err)
		}
		defer log.Sync() //nolint:errcheck
	}

	rec, err := curry.DecodeFile(args[0], curry.WithLogger(log))
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", args[0], err)
	}

	s := summary{
		Channels:          rec.Channels,
		Samples:           rec.Samples,
		Trials:            rec.Trials,
		SampleRateHz:      rec.SampleRate,
		TriggerOffsetUsec: rec.TriggerOffsetUsec,
		Duration:          rec.Duration().String(),
		Labels:            rec.Labels,
		SensorCount:       len(rec.Sensors),
		EventCount:        len(rec.Events),
		EpochCount:        len(rec.Epochs),
		ImpedanceReadings: len(rec.Impedances),
	}
	for _, a := range rec.Advisories {
		s.Advisories = append(s.Advisories, a.String())
	}
	if showEvents {
		for _, ev := range rec.Events {
			s.Events = append(s.Events, eventSummary{
				Sample:     ev.Sample,
				Type:       ev.Type,
				Boundary:   ev.Boundary,
				Annotation: ev.Annotation,
			})
		}
	}

	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling summary: %w", err)
	}
	cmd.OutOrStdout().Write(out) //nolint:errcheck
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
