package audioio

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
)

func l16Payload(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func sendRTP(t *testing.T, conn net.Conn, seq uint16, samples []int16) {
	t.Helper()
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * uint32(len(samples)),
			SSRC:           0x1234,
		},
		Payload: l16Payload(samples),
	}
	raw, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := conn.Write(raw); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestL16Decoder(t *testing.T) {
	d := L16Decoder{Rate: 16000, Chans: 1}
	got, err := d.Decode(l16Payload([]int16{1, -1, 300}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != -1 || got[2] != 300 {
		t.Errorf("Expected [1 -1 300], got %v", got)
	}

	if _, err := d.Decode([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for odd-length payload")
	}
}

func TestRTPSource_Receive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendRTP
	cfg.Addr = "127.0.0.1:0"
	cfg.BufferSamples = 4

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rs := src.(*RTPSource)
	conn, err := net.Dial("udp", rs.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// six samples re-buffer into one chunk of four with two pending
	sendRTP(t, conn, 1, []int16{1, 2, 3, 4, 5, 6})
	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := []int16{1, 2, 3, 4}
	for i := range want {
		if chunk.Samples[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, chunk.Samples)
		}
	}

	// sequence jumps from 1 to 4: two packets lost
	sendRTP(t, conn, 4, []int16{7, 8})
	chunk, err = src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want = []int16{5, 6, 7, 8}
	for i := range want {
		if chunk.Samples[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, chunk.Samples)
		}
	}

	if rs.Lost() != 2 {
		t.Errorf("Expected 2 lost packets, got %d", rs.Lost())
	}
	if chunk.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", chunk.SampleRate)
	}
}

func TestRTPSource_StopClosesStream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendRTP
	cfg.Addr = "127.0.0.1:0"

	src := NewRTPSource(cfg, L16Decoder{Rate: 16000, Chans: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	stream := src.Stream()

	cancel()

	select {
	case _, ok := <-stream:
		if ok {
			t.Error("Expected closed stream")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stream was not closed after context cancel")
	}
	if src.Stats().Running {
		t.Error("Expected source to be stopped")
	}
}
