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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// bytesPerSample is the width of one binary sample value (IEEE-754 single).
const bytesPerSample = 4

// inferSampleCount estimates the per-trial sample count of a binary stream
// from the data file's byte size. It reports ok=false when the counts make
// the estimate meaningless; ASCII streams are never size-inferable.
func inferSampleCount(sizeBytes int64, channels, trials int) (int, bool) {
	if sizeBytes <= 0 || channels <= 0 || trials <= 0 {
		return 0, false
	}
	return int(sizeBytes / (bytesPerSample * int64(channels) * int64(trials))), true
}

// sampleMatrix is the decoded sample stream together with the corrected
// per-trial sample count.
type sampleMatrix struct {
	data    [][]float32 // channels rows of samples*trials columns
	samples int         // samples per channel per trial, after correction
}

// readSampleMatrix decodes the raw sample stream into a channels-by-
// (samples*trials) matrix. Negative declared sample counts are inferred from
// sizeBytes for binary streams; a short read is tolerated with an advisory
// and the declared count corrected to the actual one. Reads never exceed the
// requested element count even when the underlying file is larger.
func readSampleMatrix(r io.Reader, sizeBytes int64, p parameters) (sampleMatrix, []Advisory, error) {
	samples := p.numSamples
	if samples < 0 {
		if p.ascii {
			return sampleMatrix{}, nil, fmt.Errorf("ascii data file: %w", ErrUnknownSampleCount)
		}
		est, ok := inferSampleCount(sizeBytes, p.numChannels, p.numTrials)
		if !ok {
			return sampleMatrix{}, nil, fmt.Errorf("data file of %d bytes: %w", sizeBytes, ErrUnknownSampleCount)
		}
		samples = est
	}
	if p.numChannels <= 0 {
		return sampleMatrix{}, nil, fmt.Errorf("no channels declared: %w", ErrEmptyData)
	}

	want := p.numChannels * samples * p.numTrials
	var (
		values []float32
		err    error
	)
	if p.ascii {
		values, err = readASCIIValues(r, want)
	} else {
		values, err = readBinaryValues(r, want)
	}
	if err != nil {
		return sampleMatrix{}, nil, err
	}

	actual := len(values) / p.numChannels / p.numTrials
	if actual == 0 {
		return sampleMatrix{}, nil, fmt.Errorf("data file: %w", ErrEmptyData)
	}

	var advisories []Advisory
	if actual < samples {
		advisories = append(advisories, Advisory{
			Code: AdvisoryTruncatedRead,
			Message: fmt.Sprintf("expected %d samples per trial, decoded %d; continuing with the actual count",
				samples, actual),
		})
		samples = actual
	}

	cols := samples * p.numTrials
	data := make([][]float32, p.numChannels)
	for ch := range data {
		data[ch] = make([]float32, cols)
	}

	if p.multiplexed {
		// Sample-major stream: each channel's samples are contiguous, so the
		// read is transposed into the channel-major matrix.
		for k := 0; k < p.numChannels*cols; k++ {
			data[k/cols][k%cols] = values[k]
		}
	} else {
		// Channel-major stream: the channel index varies fastest.
		for k := 0; k < p.numChannels*cols; k++ {
			data[k%p.numChannels][k/p.numChannels] = values[k]
		}
	}
	return sampleMatrix{data: data, samples: samples}, advisories, nil
}

// readBinaryValues reads up to want little-endian float32 values, tolerating
// a short stream.
func readBinaryValues(r io.Reader, want int) ([]float32, error) {
	buf := make([]byte, want*bytesPerSample)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("error reading sample data: %w", err)
	}

	values := make([]float32, n/bytesPerSample)
	for i := range values {
		bits := binary.LittleEndian.Uint32(buf[i*bytesPerSample:])
		values[i] = math.Float32frombits(bits)
	}
	return values, nil
}

// readASCIIValues reads up to want whitespace-delimited floating literals,
// skipping anything unparsable, tolerating a short stream.
func readASCIIValues(r io.Reader, want int) ([]float32, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	values := make([]float32, 0, want)
	for len(values) < want && sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 32)
		if err != nil {
			continue
		}
		values = append(values, float32(v))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading sample data: %w", err)
	}
	return values, nil
}
