// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/draw"

	"github.com/zeebo/blake3"
)

// frameDomainKey separates frame digests from any other BLAKE3 use.
// ASCII "codeshield.proctor.frame", zero-padded to 32 bytes.
var frameDomainKey = [32]byte{
	'c', 'o', 'd', 'e', 's', 'h', 'i', 'e', 'l', 'd', '.',
	'p', 'r', 'o', 'c', 't', 'o', 'r', '.',
	'f', 'r', 'a', 'm', 'e',
}

// FrameDigest returns the hex BLAKE3 keyed hash of the frame's
// dimensions and pixels, converted to RGBA. Returns "" for a nil or
// empty frame.
func FrameDigest(frame image.Image) string {
	if frame == nil || frame.Bounds().Empty() {
		return ""
	}

	hasher, err := blake3.NewKeyed(frameDomainKey[:])
	if err != nil {
		panic("media: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	bounds := frame.Bounds()
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(bounds.Dx()))
	binary.BigEndian.PutUint32(header[4:8], uint32(bounds.Dy()))
	hasher.Write(header[:])

	rgba := toRGBA(frame)
	rowLength := bounds.Dx() * 4
	for y := 0; y < bounds.Dy(); y++ {
		offset := y * rgba.Stride
		hasher.Write(rgba.Pix[offset : offset+rowLength])
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// toRGBA returns frame as an *image.RGBA whose origin is (0,0),
// converting when necessary.
func toRGBA(frame image.Image) *image.RGBA {
	bounds := frame.Bounds()
	if rgba, ok := frame.(*image.RGBA); ok && bounds.Min == (image.Point{}) {
		return rgba
	}
	converted := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(converted, converted.Bounds(), frame, bounds.Min, draw.Src)
	return converted
}
