// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package curry

import "errors"

// Fatal decode conditions. Callers may match these with errors.Is; every
// fatal error returned by DecodeFile wraps one of them.
var (
	// ErrCompressedFormat marks the compressed variant of the Curry format,
	// which is detected and rejected, never decoded.
	ErrCompressedFormat = errors.New("compressed curry format is not supported")

	// ErrMissingParameters means no parameter sidecar file could be opened.
	ErrMissingParameters = errors.New("missing parameter file")

	// ErrEmptyData means the sample stream decoded to zero samples.
	ErrEmptyData = errors.New("empty sample stream")

	// ErrUnknownSampleCount means the declared sample count is absent and
	// cannot be inferred from the file size.
	ErrUnknownSampleCount = errors.New("sample count unknown and not inferable")

	// ErrBadSampleRate means the sampling frequency is absent or not positive
	// after derivation.
	ErrBadSampleRate = errors.New("sampling frequency must be positive")
)
