// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Encoding selects the wire encoding of telemetry envelopes.
type Encoding string

const (
	// JSON sends envelopes as JSON text messages.
	JSON Encoding = "json"

	// CBOR sends envelopes as CBOR binary messages.
	CBOR Encoding = "cbor"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Decoding into any must yield map[string]any, the shape the
		// JSON decoder produces, so callers can treat both encodings
		// alike.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// ParseEncoding accepts "json" or "cbor". The empty string selects
// JSON.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case "", JSON:
		return JSON, nil
	case CBOR:
		return CBOR, nil
	}
	return "", fmt.Errorf("codec: unknown encoding %q (want json or cbor)", name)
}

// Binary reports whether messages in this encoding travel as binary
// frames rather than text frames.
func (e Encoding) Binary() bool { return e == CBOR }

// Marshal encodes v.
func (e Encoding) Marshal(v any) ([]byte, error) {
	if e == CBOR {
		return encMode.Marshal(v)
	}
	return json.Marshal(v)
}

// Unmarshal decodes data into v.
func (e Encoding) Unmarshal(data []byte, v any) error {
	if e == CBOR {
		return decMode.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}
