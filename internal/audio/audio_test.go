package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"
)

func TestJoinFramesStripsPerFramePadding(t *testing.T) {
	// Two frames whose individual encodings carry padding. Naive string
	// concatenation would put '=' in the middle and corrupt the decode.
	a := []byte{0x01, 0x02, 0x03, 0x04, 0x05} // encodes with one '='
	b := []byte{0x06, 0x07}                   // encodes with two '='

	frames := []string{
		base64.StdEncoding.EncodeToString(a),
		base64.StdEncoding.EncodeToString(b),
	}

	got, err := JoinFrames(frames)
	if err != nil {
		t.Fatalf("JoinFrames: %v", err)
	}
	want := append(append([]byte{}, a...), b...)
	if !bytes.Equal(got, want) {
		t.Errorf("JoinFrames = %v, want %v", got, want)
	}
}

func TestJoinFramesWireSizedFrames(t *testing.T) {
	// Two 20ms telephony frames. 160 bytes encode with one '=' each, so a
	// join that only strips padding from the text would come out 321 bytes
	// long with every byte after the seam shifted.
	a := make([]byte, 160)
	b := make([]byte, 160)
	for i := range a {
		a[i] = byte(i)
		b[i] = byte(255 - i)
	}

	got, err := JoinFrames([]string{
		base64.StdEncoding.EncodeToString(a),
		base64.StdEncoding.EncodeToString(b),
	})
	if err != nil {
		t.Fatalf("JoinFrames: %v", err)
	}
	want := append(append([]byte{}, a...), b...)
	if len(got) != 320 {
		t.Fatalf("joined length = %d, want 320", len(got))
	}
	if !bytes.Equal(got, want) {
		t.Error("joined bytes differ from the concatenated frames")
	}
}

func TestJoinFramesFiltersGarbage(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30}
	frame := base64.StdEncoding.EncodeToString(payload)

	got, err := JoinFrames([]string{frame + "\n", " "})
	if err != nil {
		t.Fatalf("JoinFrames: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("JoinFrames = %v, want %v", got, payload)
	}
}

func TestJoinFramesEmpty(t *testing.T) {
	got, err := JoinFrames(nil)
	if err != nil {
		t.Fatalf("JoinFrames(nil): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("JoinFrames(nil) = %v, want empty", got)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS([]byte{0, 0, 0}); got != 0 {
		t.Errorf("RMS(zeros) = %v, want 0", got)
	}
	if got := RMS([]byte{100, 100}); got != 100 {
		t.Errorf("RMS(100s) = %v, want 100", got)
	}
}

func TestHasSpeech(t *testing.T) {
	loud := base64.StdEncoding.EncodeToString([]byte{200, 210, 190, 220})
	quiet := base64.StdEncoding.EncodeToString([]byte{1, 2, 1, 2})

	if !HasSpeech(loud, 50) {
		t.Error("loud frame should count as speech")
	}
	if HasSpeech(quiet, 50) {
		t.Error("quiet frame should not count as speech")
	}
	// Undecodable frames are kept rather than dropped.
	if !HasSpeech("!!!not base64!!!", 50) {
		t.Error("undecodable frame should count as speech")
	}
}

func TestMulawWAVHeader(t *testing.T) {
	data := make([]byte, 800) // 100ms at 8kHz
	wav := MulawWAV(data)

	if len(wav) != 44+len(data) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(data))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != FormatULaw {
		t.Errorf("format = %d, want %d (G.711 mu-law)", got, FormatULaw)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 8000 {
		t.Errorf("sample rate = %d, want 8000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(data)) {
		t.Errorf("data length = %d, want %d", got, len(data))
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 8000 {
		t.Errorf("byte rate = %d, want 8000 for 8-bit mono", got)
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		size     int
		wantLens []int
	}{
		{"exact multiple", 480, 160, []int{160, 160, 160}},
		{"short tail", 400, 160, []int{160, 160, 80}},
		{"single short piece", 100, 160, []int{100}},
		{"empty", 0, 160, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(make([]byte, tt.input), tt.size)
			if len(chunks) != len(tt.wantLens) {
				t.Fatalf("chunk count = %d, want %d", len(chunks), len(tt.wantLens))
			}
			for i, want := range tt.wantLens {
				if len(chunks[i]) != want {
					t.Errorf("chunk[%d] length = %d, want %d", i, len(chunks[i]), want)
				}
			}
		})
	}
}
