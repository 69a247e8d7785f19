// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package curry_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/curry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile is a fixture helper.
func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// binarySamples encodes a channel-major float32 stream: for each sample, one
// value per channel in order.
func binarySamples(rows ...[]float32) []byte {
	var buf []byte
	for s := range rows[0] {
		for ch := range rows {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(rows[ch][s]))
		}
	}
	return buf
}

const modernParams = `NumSamples = 6
NumChannels = 3
NumTrials = 1
SampleFreqHz = 100
TriggerOffsetUsec = 0
DataFormat = FLOAT
DataSampOrder = CHAN

LABELS_OTHERS START_LIST
LABELS_OTHERS END_LIST
LABELS START_LIST
C3
C4
Trigger
LABELS END_LIST

SENSORS_OTHERS START_LIST
SENSORS_OTHERS END_LIST
SENSORS START_LIST
1 2 3
4 5 6
0 0 0
SENSORS END_LIST

IMPEDANCE_VALUES START_LIST
1 2 3 -1 5 6
IMPEDANCE_VALUES END_LIST
`

const modernEvents = `NUMBER_LIST START_LIST
2 4 2 2
4 9 4 4
NUMBER_LIST END_LIST

REMARK_LIST START_LIST
stim A
stim B
REMARK_LIST END_LIST
`

func TestDecodeFileModern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.cdt")

	writeFile(t, path, binarySamples(
		[]float32{0.5, 1.5, 2.5, 3.5, 4.5, 5.5},
		[]float32{0, 2, 4, 6, 8, 10},
		[]float32{0, 0, 4, 0, 0, 0}, // trigger channel
	))
	writeFile(t, path+".dpa", []byte(modernParams))
	writeFile(t, path+".cef", []byte(modernEvents))

	rec, err := curry.DecodeFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, rec.Channels)
	assert.Equal(t, 6, rec.Samples)
	assert.Equal(t, 1, rec.Trials)
	assert.Equal(t, 100.0, rec.SampleRate)
	assert.Empty(t, rec.Advisories)

	assert.Equal(t, []string{"C3", "C4", "Trigger"}, rec.Labels)
	require.Len(t, rec.Sensors, 3)
	assert.Equal(t, []float64{4, 5, 6}, rec.Sensors[1])

	assert.Equal(t, []float32{0.5, 1.5, 2.5, 3.5, 4.5, 5.5}, rec.Data[0])
	assert.Equal(t, []float32{0, 2, 4, 6, 8, 10}, rec.Data[1])

	// The file event at sample 2 duplicates the trigger-channel event and
	// collapses into one; the event at 4 stands alone.
	require.Len(t, rec.Events, 2)
	assert.Equal(t, 2.0, rec.Events[0].Sample)
	assert.Equal(t, 4, rec.Events[0].Type)
	assert.Equal(t, "stim A", rec.Events[0].Annotation)
	assert.Equal(t, 4.0, rec.Events[1].Sample)
	assert.Equal(t, 9, rec.Events[1].Type)
	assert.Equal(t, "stim B", rec.Events[1].Annotation)
	assert.Equal(t, []string{"stim A", "stim B"}, rec.Annotations)

	// The trigger channel is rewritten from the final timeline.
	assert.Equal(t, []float32{0, 0, 4, 0, 9, 0}, rec.Data[2])

	// Impedance history: 6 values over 3 channels is 2 readings; the -1
	// sentinel becomes NaN.
	require.Len(t, rec.Impedances, 2)
	assert.Equal(t, []float64{1, 2, 3}, rec.Impedances[0])
	assert.True(t, math.IsNaN(rec.Impedances[1][0]))
	assert.Equal(t, []float64{5, 6}, rec.Impedances[1][1:])

	assert.Equal(t, "60ms", rec.Duration().String())
}

func TestDecodeFileParameterFallbackExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.cdt")

	writeFile(t, path, binarySamples(
		[]float32{1, 2},
		[]float32{3, 4},
		[]float32{0, 0},
	))
	// Only the .dpo spelling exists; the .dpa attempt must fall through.
	writeFile(t, path+".dpo", []byte(modernParams))

	rec, err := curry.DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Channels)
	require.Len(t, rec.Advisories, 1)
	assert.Equal(t, curry.AdvisoryTruncatedRead, rec.Advisories[0].Code)
	assert.Equal(t, 2, rec.Samples)
}

func TestDecodeFileLegacy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.dat")

	writeFile(t, path, []byte("1.0 0.0 2.0 0.0 3.0 5.0 4.0 5.0\n"))
	writeFile(t, filepath.Join(dir, "recording.dap"), []byte(`NUM_SAMPLES = 4
NUM_CHANNELS = 2
NUM_TRIALS = 1
SAMPLE_FREQ_HZ = 250
DATA_FORMAT = ASCII
`))
	writeFile(t, filepath.Join(dir, "recording.rs3"), []byte(`
LABELS_OTHERS START_LIST
LABELS_OTHERS END_LIST
LABELS START_LIST
Cz
Trigger
LABELS END_LIST
`))

	rec, err := curry.DecodeFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Cz", "Trigger"}, rec.Labels)
	assert.Equal(t, []float32{1, 2, 3, 4}, rec.Data[0])

	// The held trigger value 5 counts once, at its first sample.
	require.Len(t, rec.Events, 1)
	assert.Equal(t, 2.0, rec.Events[0].Sample)
	assert.Equal(t, 5, rec.Events[0].Type)
	assert.Equal(t, []float32{0, 0, 5, 0}, rec.Data[1])
}

func TestDecodeFileLegacyMissingLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.dat")

	writeFile(t, path, []byte("1 2 3 4\n"))
	writeFile(t, filepath.Join(dir, "recording.dap"), []byte(`NUM_SAMPLES = 2
NUM_CHANNELS = 2
SAMPLE_FREQ_HZ = 250
DATA_FORMAT = ASCII
`))

	rec, err := curry.DecodeFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"EEG1", "EEG2"}, rec.Labels)
	assert.Empty(t, rec.Sensors)
	require.Len(t, rec.Advisories, 1)
	assert.Equal(t, curry.AdvisoryMissingLabels, rec.Advisories[0].Code)
}

func TestDecodeFileEpoched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.cdt")

	// 2 channels, 2 trials of 5 samples.
	writeFile(t, path, binarySamples(
		[]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		[]float32{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	))
	writeFile(t, path+".dpa", []byte(`NumSamples = 5
NumChannels = 2
NumTrials = 2
SampleFreqHz = 100
TriggerOffsetUsec = 0
DataFormat = FLOAT

EPOCH_LABELS START_LIST
first
second
EPOCH_LABELS END_LIST
EPOCH_INFORMATION START_LIST
1 2 1 1 1 0 0
1 2 2 1 1 0 0
EPOCH_INFORMATION END_LIST
`))

	rec, err := curry.DecodeFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, rec.Trials)
	assert.Equal(t, 5, rec.Samples)
	require.Len(t, rec.Epochs, 2)
	assert.Equal(t, []string{"first", "second"}, rec.EpochLabels)
	assert.Equal(t, "first", rec.Epochs[0].Label)

	// The epoched stream flattens to one continuous buffer; trial structure
	// survives only as events.
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, rec.Data[0])

	require.Len(t, rec.Events, 3)
	assert.Equal(t, 0.0, rec.Events[0].Sample)
	assert.Equal(t, 1, rec.Events[0].Type)
	assert.Equal(t, 5.0, rec.Events[1].Sample)
	assert.True(t, rec.Events[1].Boundary)
	assert.Equal(t, 5.0, rec.Events[2].Sample)
	assert.Equal(t, 2, rec.Events[2].Type)
}

func TestDecodeFileInferredSampleCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.cdt")

	// 2 channels * 3 samples * 4 bytes = 24 bytes; the declared count of -1
	// forces inference from the file size.
	writeFile(t, path, binarySamples(
		[]float32{1, 2, 3},
		[]float32{4, 5, 6},
	))
	writeFile(t, path+".dpa", []byte(`NumSamples = -1
NumChannels = 2
NumTrials = 1
SampleFreqHz = 100
DataFormat = FLOAT
`))

	rec, err := curry.DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Samples)
	assert.Equal(t, []float32{1, 2, 3}, rec.Data[0])
}

func TestDecodeFileMissingParametersFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.cdt")
	writeFile(t, path, []byte{0, 0, 0, 0})

	_, err := curry.DecodeFile(path)
	require.ErrorIs(t, err, curry.ErrMissingParameters)
}

func TestDecodeFileCompressedFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.cdt")
	writeFile(t, path, []byte{0, 0, 0, 0})
	writeFile(t, path+".dpa", []byte(`DataGuid = {2912E8D8-F5C8-4E25-A8E7-A1385967DA09}
NumChannels = 1
SampleFreqHz = 100
`))

	_, err := curry.DecodeFile(path)
	require.ErrorIs(t, err, curry.ErrCompressedFormat)
}

func TestDecodeFileEmptyDataFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.cdt")
	writeFile(t, path, nil)
	writeFile(t, path+".dpa", []byte(`NumSamples = 100
NumChannels = 2
SampleFreqHz = 100
DataFormat = FLOAT
`))

	_, err := curry.DecodeFile(path)
	require.ErrorIs(t, err, curry.ErrEmptyData)
}
