// Package keyframe classifies whether an fMP4 fragment (moof box) begins
// on a sync sample, by walking its traf/tfhd/trun children per ISO/IEC
// 14496-12 sample-flag rules. It is a pure function over bytes: no I/O,
// no shared state.
package keyframe

import (
	"encoding/binary"

	"hls-fragmenter/box"
)

// Classification is the tri-valued result of DetectMoofKeyframe. It is
// never collapsed into a bool-plus-sentinel: "we don't know" is a first
// class outcome, not an error.
type Classification int

const (
	Indeterminate Classification = iota
	Keyframe
	NonKeyframe
)

func (c Classification) String() string {
	switch c {
	case Keyframe:
		return "keyframe"
	case NonKeyframe:
		return "non-keyframe"
	default:
		return "indeterminate"
	}
}

// DetectMoofKeyframe classifies moofBytes (a full moof box, header
// included) as Keyframe, NonKeyframe or Indeterminate. Malformed sample
// flags anywhere inside are absorbed as "no signal" rather than
// propagated as an error.
func DetectMoofKeyframe(moofBytes []byte) (result Classification) {
	result = Indeterminate
	defer func() {
		// bounds checks below should make this unreachable, but a
		// corrupt fragment is exactly the case we must never crash on
		if recover() != nil {
			result = Indeterminate
		}
	}()

	var anyKeyframe, anyNonKeyframe bool

	box.WalkChildren(moofBytes, func(traf box.Child) bool {
		if string(traf.Type[:]) != "traf" {
			return true
		}
		trafBytes := traf.Bytes(moofBytes)

		var defaultFlags *uint32
		var sawKeyframe, sawNonKeyframe bool

		box.WalkChildren(trafBytes, func(c box.Child) bool {
			switch string(c.Type[:]) {
			case "tfhd":
				if f := tfhdDefaultSampleFlags(c.Bytes(trafBytes)); f != nil {
					defaultFlags = f
				}
			case "trun":
				if f := trunFirstSampleFlags(c.Bytes(trafBytes), defaultFlags); f != nil {
					if isKeyframeFlags(*f) {
						sawKeyframe = true
					} else {
						sawNonKeyframe = true
					}
				}
			}
			return true
		})

		if sawNonKeyframe {
			anyNonKeyframe = true
		} else if sawKeyframe {
			anyKeyframe = true
		}
		return true
	})

	switch {
	case anyNonKeyframe:
		return NonKeyframe
	case anyKeyframe:
		return Keyframe
	default:
		return Indeterminate
	}
}

// isKeyframeFlags evaluates a 32-bit ISO/IEC 14496-12 sample-flags word,
// treating sample_depends_on and sample_is_non_sync_sample as the
// deciding bits.
func isKeyframeFlags(flags uint32) bool {
	sampleDependsOn := (flags >> 24) & 0x3
	sampleIsNonSync := (flags >> 16) & 0x1

	switch {
	case sampleDependsOn == 1:
		return false
	case sampleDependsOn == 2:
		return true
	case sampleIsNonSync == 1:
		return false
	default:
		return true
	}
}

func readUint32(b []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(b) {
		return 0, false
	}
	return binary.BigEndian.Uint32(b[off : off+4]), true
}

// tfhdDefaultSampleFlags reads default_sample_flags out of a tfhd box.
// Returns nil if the flag bit isn't set or any read is out of bounds.
func tfhdDefaultSampleFlags(tfhd []byte) *uint32 {
	tfFlags, ok := readUint32(tfhd, 8)
	if !ok {
		return nil
	}
	tfFlags &= 0x00FFFFFF

	off := 16
	if tfFlags&0x000001 != 0 {
		off += 8 // base_data_offset
	}
	if tfFlags&0x000002 != 0 {
		off += 4 // sample_description_index
	}
	if tfFlags&0x000008 != 0 {
		off += 4 // default_sample_duration
	}
	if tfFlags&0x000010 != 0 {
		off += 4 // default_sample_size
	}
	if tfFlags&0x000020 == 0 {
		return nil
	}
	val, ok := readUint32(tfhd, off)
	if !ok {
		return nil
	}
	return &val
}

// trunFirstSampleFlags resolves the effective sample-flags word for the
// first sample of a trun box: the trun's own per-sample flags take
// priority when present, falling back to the tfhd default_sample_flags
// for this traf, if any.
func trunFirstSampleFlags(trun []byte, defaults *uint32) *uint32 {
	trFlags, ok := readUint32(trun, 8)
	if !ok {
		return nil
	}
	trFlags &= 0x00FFFFFF

	sampleCount, ok := readUint32(trun, 12)
	if !ok || sampleCount == 0 {
		return nil
	}

	off := 16
	if trFlags&0x001 != 0 {
		off += 4 // data_offset
	}
	if trFlags&0x004 != 0 {
		val, ok := readUint32(trun, off)
		if !ok {
			return nil
		}
		return &val
	}

	if trFlags&0x400 != 0 {
		firstOff := off
		if trFlags&0x100 != 0 {
			firstOff += 4 // sample_duration
		}
		if trFlags&0x200 != 0 {
			firstOff += 4 // sample_size
		}
		val, ok := readUint32(trun, firstOff)
		if !ok {
			return nil
		}
		return &val
	}

	return defaults
}
