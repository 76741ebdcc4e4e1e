// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package transmission

import (
	"encoding/binary"
	"fmt"
	"io"
)

// wavHeaderSize is the fixed 44-byte canonical PCM WAV header size this
// writer produces (no extension chunks).
const wavHeaderSize = 44

// writeWavHeader writes a placeholder canonical WAV/RIFF header (data
// size fields zeroed) that completeWavHeader later patches in place once
// the final sample count is known — the same "open, write zeros, record
// samples, seek back and patch" approach the reference C writer uses via
// wavheader_write/wavheader_complete.
func writeWavHeader(w io.WriteSeeker, sampleRate uint32, channels, bitsPerSample int) error {
	byteRate := sampleRate * uint32(channels) * uint32(bitsPerSample) / 8
	blockAlign := uint16(channels * bitsPerSample / 8)

	buf := make([]byte, wavHeaderSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 0) // patched by completeWavHeader
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], byteRate)
	binary.LittleEndian.PutUint16(buf[32:34], blockAlign)
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], 0) // patched by completeWavHeader

	_, err := w.Write(buf)
	return err
}

// completeWavHeader seeks back to the RIFF/data size fields and fills in
// the final sizes now that byteCount bytes of samples have been written.
func completeWavHeader(w io.WriteSeeker, byteCount uint32) error {
	if _, err := w.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("transmission: seeking to RIFF size: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, byteCount+36); err != nil {
		return err
	}
	if _, err := w.Seek(40, io.SeekStart); err != nil {
		return fmt.Errorf("transmission: seeking to data size: %w", err)
	}
	return binary.Write(w, binary.LittleEndian, byteCount)
}

// writeSample appends one sample, normalized to the configured bit depth
// the way the reference writer's d_normalize_fac/d_normalize_shift do:
// 16-bit is written signed as-is, 8-bit is written unsigned and offset.
func writeSample(w io.Writer, sample int16, bitsPerSample int) error {
	if bitsPerSample == 8 {
		normalized := byte((int(sample) + 32768) >> 8)
		_, err := w.Write([]byte{normalized})
		return err
	}
	return binary.Write(w, binary.LittleEndian, sample)
}
