package marketstream

import (
	"testing"

	"github.com/polyarb/polyarb/pkg/types"
)

func TestDecodeFrameBookSnapshot(t *testing.T) {
	frame := []byte(`[{"event_type":"book","asset_id":"tok-1","market":"mkt-1","timestamp":"1700000000",
		"bids":[{"price":"0.50","size":"100"}],"asks":[{"price":"0.52","size":"90"}]}]`)

	seq := newSequencer()
	msgs, err := decodeFrame(frame, seq)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Kind != types.StreamSnapshot {
		t.Errorf("expected StreamSnapshot, got %v", m.Kind)
	}
	if m.TokenID != types.TokenId("tok-1") {
		t.Errorf("unexpected token id %s", m.TokenID)
	}
	if m.Sequence != 1 {
		t.Errorf("expected sequence 1 on first snapshot, got %d", m.Sequence)
	}
	if len(m.Bids) != 1 || m.Bids[0].Price.String() != "0.500000" {
		t.Errorf("unexpected bids %v", m.Bids)
	}
}

func TestDecodeFramePriceChangeIncrementsSequence(t *testing.T) {
	seq := newSequencer()
	book := []byte(`[{"event_type":"book","asset_id":"tok-1","market":"mkt-1","timestamp":"1","bids":[],"asks":[]}]`)
	delta := []byte(`[{"event_type":"price_change","asset_id":"tok-1","market":"mkt-1","timestamp":"2",
		"bids":[{"price":"0.55","size":"10"}]}]`)

	msgs, err := decodeFrame(book, seq)
	if err != nil {
		t.Fatalf("decode book: %v", err)
	}
	if msgs[0].Sequence != 1 {
		t.Fatalf("expected seq 1, got %d", msgs[0].Sequence)
	}

	msgs, err = decodeFrame(delta, seq)
	if err != nil {
		t.Fatalf("decode delta: %v", err)
	}
	if msgs[0].Kind != types.StreamDelta {
		t.Errorf("expected StreamDelta, got %v", msgs[0].Kind)
	}
	if msgs[0].Sequence != 2 {
		t.Errorf("expected seq 2, got %d", msgs[0].Sequence)
	}
}

func TestDecodeFrameEmptyArrayIsHeartbeat(t *testing.T) {
	seq := newSequencer()
	msgs, err := decodeFrame([]byte(`[]`), seq)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Kind != types.StreamHeartbeat {
		t.Fatalf("expected single heartbeat message, got %v", msgs)
	}
}

func TestDecodeFrameControlMessageIsHeartbeat(t *testing.T) {
	seq := newSequencer()
	msgs, err := decodeFrame([]byte(`{"type":"subscribed"}`), seq)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Kind != types.StreamHeartbeat {
		t.Fatalf("expected heartbeat for control message, got %v", msgs)
	}
}

func TestBookResetsSequenceOnResubscribe(t *testing.T) {
	seq := newSequencer()
	book := []byte(`[{"event_type":"book","asset_id":"tok-1","market":"mkt-1","timestamp":"1"}]`)

	msgs, _ := decodeFrame(book, seq)
	if msgs[0].Sequence != 1 {
		t.Fatalf("expected seq 1, got %d", msgs[0].Sequence)
	}
	msgs, _ = decodeFrame(book, seq)
	if msgs[0].Sequence != 1 {
		t.Fatalf("expected seq reset to 1 on second book snapshot, got %d", msgs[0].Sequence)
	}
}
