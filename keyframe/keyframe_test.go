package keyframe

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func box(typ string, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	copy(buf[4:8], typ)
	copy(buf[8:], payload)
	return buf
}

func fullBoxPayload(flags uint32, rest ...[]byte) []byte {
	var out []byte
	var vf [4]byte
	binary.BigEndian.PutUint32(vf[:], flags) // version byte (0) is high byte of flags here, fine for test
	out = append(out, vf[:]...)
	for _, r := range rest {
		out = append(out, r...)
	}
	return out
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func tfhdWithDefaultFlags(trackID uint32, defaultFlags uint32) []byte {
	payload := fullBoxPayload(0x000020, u32(trackID), u32(defaultFlags))
	return box("tfhd", payload)
}

func trunWithFirstSampleFlags(sampleCount uint32, firstFlags uint32) []byte {
	payload := fullBoxPayload(0x004, u32(sampleCount), u32(firstFlags))
	return box("trun", payload)
}

func traf(children ...[]byte) []byte {
	var payload []byte
	for _, c := range children {
		payload = append(payload, c...)
	}
	return box("traf", payload)
}

func moof(trafs ...[]byte) []byte {
	var payload []byte
	for _, t := range trafs {
		payload = append(payload, t...)
	}
	return box("moof", payload)
}

const (
	dependsOnOthers = 0x01000000 // sample_depends_on = 1 -> non-keyframe
	dependsOnNone   = 0x02000000 // sample_depends_on = 2 -> keyframe
	nonSyncBit      = 0x00010000
)

func TestDetectMoofKeyframe_ExplicitKeyframe(t *testing.T) {
	tf := traf(trunWithFirstSampleFlags(1, dependsOnNone))
	require.Equal(t, Keyframe, DetectMoofKeyframe(moof(tf)))
}

func TestDetectMoofKeyframe_ExplicitNonKeyframe(t *testing.T) {
	tf := traf(trunWithFirstSampleFlags(1, dependsOnOthers))
	require.Equal(t, NonKeyframe, DetectMoofKeyframe(moof(tf)))
}

func TestDetectMoofKeyframe_NonSyncBitWithoutDependsOn(t *testing.T) {
	tf := traf(trunWithFirstSampleFlags(1, nonSyncBit))
	require.Equal(t, NonKeyframe, DetectMoofKeyframe(moof(tf)))
}

func TestDetectMoofKeyframe_ISODefaultIsKeyframe(t *testing.T) {
	tf := traf(trunWithFirstSampleFlags(1, 0))
	require.Equal(t, Keyframe, DetectMoofKeyframe(moof(tf)))
}

func TestDetectMoofKeyframe_NonKeyframeDominatesAcrossTraf(t *testing.T) {
	videoTraf := traf(trunWithFirstSampleFlags(1, dependsOnOthers))
	audioTraf := traf(trunWithFirstSampleFlags(1, dependsOnNone))
	require.Equal(t, NonKeyframe, DetectMoofKeyframe(moof(videoTraf, audioTraf)))
}

func TestDetectMoofKeyframe_UsesTfhdDefaultWhenTrunHasNoFlags(t *testing.T) {
	tfhd := tfhdWithDefaultFlags(1, dependsOnOthers)
	trunNoFlags := box("trun", fullBoxPayload(0, u32(1)))
	tf := traf(tfhd, trunNoFlags)
	require.Equal(t, NonKeyframe, DetectMoofKeyframe(moof(tf)))
}

func TestDetectMoofKeyframe_SampleCountZeroIsIndeterminate(t *testing.T) {
	trunZero := box("trun", fullBoxPayload(0x004, u32(0), u32(dependsOnOthers)))
	tf := traf(trunZero)
	require.Equal(t, Indeterminate, DetectMoofKeyframe(moof(tf)))
}

func TestDetectMoofKeyframe_NoTrafIsIndeterminate(t *testing.T) {
	require.Equal(t, Indeterminate, DetectMoofKeyframe(moof()))
}

func TestDetectMoofKeyframe_TruncatedTfhdIsIndeterminate(t *testing.T) {
	tfhd := box("tfhd", []byte{0, 0, 0})
	tf := traf(tfhd)
	require.Equal(t, Indeterminate, DetectMoofKeyframe(moof(tf)))
}

func TestDetectMoofKeyframe_FirstSampleFlagsSkipsDurationAndSize(t *testing.T) {
	// flags = 0x100 | 0x200 | 0x400: duration, size, and per-sample flags present
	payload := fullBoxPayload(0x700, u32(1), u32(1000), u32(512), u32(dependsOnNone))
	trun := box("trun", payload)
	tf := traf(trun)
	require.Equal(t, Keyframe, DetectMoofKeyframe(moof(tf)))
}
