// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec encodes telemetry envelopes for the collector
// connection.
//
// The collector speaks JSON by default: one JSON object per text
// message. Collectors that opt into binary framing receive the same
// envelope as CBOR, one object per binary message. The [Encoding]
// chosen in configuration decides both the bytes and the frame type.
//
// CBOR uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. Types
// carry `json` struct tags only; fxamacker/cbor falls back to them, so
// one tag set names fields identically in both encodings.
package codec
