// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ota decodes over-the-air Motorola alias broadcasts carried in
// P25 data channel fragments: payload reassembly from either the Phase 1
// (FDMA) or Phase 2 (TDMA) fragment layout, CRC-16/GSM validation, and the
// custom substitution/LCG de-obfuscation that recovers the alias text.
package ota

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Alias is the result of a successful (or attempted) Motorola OTA alias
// decode: the radio and talkgroup it was broadcast for, the decoded text,
// and which decode path produced it.
type Alias struct {
	Success    bool
	RadioID    uint64
	Alias      string
	Source     string // "MotoP25_FDMA" or "MotoP25_TDMA"
	WACN       string
	SysID      string
	TalkgroupID uint64
}

// lengthLookup maps the first byte (as a two-hex-digit code) of the
// alias field to the number of 16-bit codepoints that follow it.
var lengthLookup = map[string]int{
	"94": 1, "32": 2, "95": 3, "9d": 4, "1b": 5, "77": 6, "b5": 7,
	"6e": 8, "24": 9, "61": 10, "2d": 11, "7d": 12, "83": 13, "29": 14,
}

// DecodeMotorolaAliasP1 decodes a Phase 1 (FDMA) alias broadcast: a
// 9-byte header fragment (alias_buffer[0]) followed by up to `messages`
// 9-byte data fragments, each contributing its trailing bytes to one
// assembled hex payload.
func DecodeMotorolaAliasP1(aliasBuffer [10][]byte, messages int) Alias {
	if messages <= 0 || messages >= len(aliasBuffer) {
		return Alias{}
	}

	payloadHex, err := assemblePayloadP1(aliasBuffer, messages)
	if err != nil || len(payloadHex) < 32 {
		return Alias{}
	}

	return decodeMotorolaPayload(payloadHex, "MotoP25_FDMA", 14, 28)
}

// DecodeMotorolaAliasP2 decodes a Phase 2 (TDMA) alias broadcast: a
// 17-byte header MAC PDU (alias_buffer[0]) followed by up to `messages`
// 17-byte data MAC PDUs, with a field layout shifted two hex digits
// earlier than the Phase 1 variant (WACN at offset 12, not 14).
func DecodeMotorolaAliasP2(aliasBuffer [10][]byte, messages int) Alias {
	if messages <= 0 || messages >= len(aliasBuffer) {
		return Alias{}
	}

	payloadHex, err := assemblePayloadP2(aliasBuffer, messages)
	if err != nil || len(payloadHex) < 30 {
		return Alias{}
	}

	return decodeMotorolaPayload(payloadHex, "MotoP25_TDMA", 12, 26)
}

// decodeMotorolaPayload extracts the common fixed-width fields from an
// assembled hex payload and runs CRC validation + de-obfuscation. wacnOffset
// and lengthCodeOffset are the two fields whose position differs between
// the P1 and P2 layouts; everything else (field widths) is shared.
func decodeMotorolaPayload(payloadHex, source string, wacnOffset, lengthCodeOffset int) Alias {
	tg := payloadHex[0:4]
	wacn := payloadHex[wacnOffset : wacnOffset+5]
	sys := payloadHex[wacnOffset+5 : wacnOffset+8]
	radio := payloadHex[wacnOffset+8 : wacnOffset+14]
	lengthCode := payloadHex[lengthCodeOffset : lengthCodeOffset+2]

	aliasLen, ok := lengthLookup[lengthCode]
	if !ok {
		return Alias{}
	}

	requiredLen := lengthCodeOffset + aliasLen*4 + 4
	if len(payloadHex) < requiredLen {
		return Alias{}
	}

	aliasCode := payloadHex[lengthCodeOffset : lengthCodeOffset+aliasLen*4]
	checksum := payloadHex[lengthCodeOffset+aliasLen*4 : lengthCodeOffset+aliasLen*4+4]

	radioDecimal, err := strconv.ParseUint(radio, 16, 64)
	if err != nil {
		return Alias{}
	}
	tgDecimal, err := strconv.ParseUint(tg, 16, 64)
	if err != nil {
		return Alias{}
	}

	crcPayload := wacn + sys + radio + aliasCode
	if !ValidateCRC(crcPayload, checksum) {
		return Alias{}
	}

	payloadBytes, err := hex.DecodeString(crcPayload)
	if err != nil || len(payloadBytes) < 8 {
		return Alias{}
	}

	encoded := payloadBytes[7:]
	alias := decodeMotAlias(encoded)
	if alias == "" {
		return Alias{}
	}

	return Alias{
		Success:     true,
		RadioID:     radioDecimal,
		Alias:       alias,
		Source:      source,
		WACN:        wacn,
		SysID:       sys,
		TalkgroupID: tgDecimal,
	}
}

// assemblePayloadP1 builds the reassembled hex payload for the Phase 1
// layout: the header fragment contributes its bytes 2..8 (discarding the
// opcode/manufacturer bytes), and each data fragment contributes its
// bytes 3..8 with the first hex nibble dropped (the upper nibble of byte
// 3 is a sequence counter, not payload).
func assemblePayloadP1(aliasBuffer [10][]byte, messages int) (string, error) {
	if len(aliasBuffer[0]) < 9 {
		return "", errors.New("ota: phase 1 header fragment too small")
	}

	payload := hex.EncodeToString(aliasBuffer[0][2:9])

	for i := 1; i <= messages; i++ {
		if len(aliasBuffer[i]) < 9 {
			return "", fmt.Errorf("ota: phase 1 fragment %d too small", i)
		}
		chunk := hex.EncodeToString(aliasBuffer[i][3:9])
		payload += chunk[1:]
	}

	return payload, nil
}

// assemblePayloadP2 builds the reassembled hex payload for the Phase 2
// (TDMA MAC PDU) layout: 17-byte fragments, header contributes bytes
// 3..16 and each data fragment contributes bytes 4..16 with the leading
// nibble (sequence ID) dropped.
func assemblePayloadP2(aliasBuffer [10][]byte, messages int) (string, error) {
	if len(aliasBuffer[0]) < 17 {
		return "", errors.New("ota: phase 2 header fragment too small")
	}

	payload := hex.EncodeToString(aliasBuffer[0][3:17])

	for i := 1; i <= messages; i++ {
		if len(aliasBuffer[i]) < 17 {
			return "", fmt.Errorf("ota: phase 2 fragment %d too small", i)
		}
		chunk := hex.EncodeToString(aliasBuffer[i][4:17])
		payload += chunk[1:]
	}

	return payload, nil
}

// ValidateCRC checks a hex payload against a CRC-16/GSM checksum encoded
// as a 4-digit hex string (poly 0x1021, init 0x0000, xorout 0xFFFF,
// computed bit-by-bit rather than with a lookup table, matching the
// reference decoder and the low per-packet CRC volume this system sees).
func ValidateCRC(payloadHex, checksumHex string) bool {
	payload, err := hex.DecodeString(payloadHex)
	if err != nil || len(payload) == 0 {
		return false
	}

	expected, err := strconv.ParseUint(checksumHex, 16, 16)
	if err != nil {
		return false
	}

	return uint64(crc16GSM(payload)) == expected
}

func crc16GSM(payload []byte) uint16 {
	var crc uint16
	for _, b := range payload {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return ^crc
}
