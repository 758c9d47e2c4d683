package marketstream

import (
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/polyarb/polyarb/pkg/types"
)

// wireMessage mirrors the upstream CLOB WebSocket payload shape: an
// array of these arrives per frame. "book" carries a full snapshot;
// "price_change" carries incremental level updates; anything else is
// passed through as a heartbeat so the caller can still observe liveness.
type wireMessage struct {
	EventType    string          `json:"event_type"`
	AssetID      string          `json:"asset_id"`
	Market       string          `json:"market"`
	TimestampStr string          `json:"timestamp"`
	Hash         string          `json:"hash,omitempty"`
	Bids         []wirePriceSize `json:"bids,omitempty"`
	Asks         []wirePriceSize `json:"asks,omitempty"`
}

type wirePriceSize struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func (w wirePriceSize) toLevel() (types.PriceLevel, error) {
	p, err := types.NewPrice(w.Price)
	if err != nil {
		return types.PriceLevel{}, err
	}
	v, err := types.NewVolume(w.Size)
	if err != nil {
		return types.PriceLevel{}, err
	}
	return types.PriceLevel{Price: p, Size: v}, nil
}

func toLevels(raw []wirePriceSize) ([]types.PriceLevel, error) {
	out := make([]types.PriceLevel, 0, len(raw))
	for _, r := range raw {
		lvl, err := r.toLevel()
		if err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, nil
}

// sequencer assigns a strictly increasing per-token sequence number.
// The upstream feed carries no sequence field of its own (only an
// opaque content hash), so the stream itself is the source of truth
// for message ordering the cache validates against.
type sequencer struct {
	mu   sync.Mutex
	next map[types.TokenId]int64
}

func newSequencer() *sequencer {
	return &sequencer{next: make(map[types.TokenId]int64)}
}

func (s *sequencer) advance(tokenID types.TokenId) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[tokenID]++
	return s.next[tokenID]
}

// reset clears a token's counter, used when a resubscribe will cause a
// fresh snapshot to arrive and restart numbering from 1.
func (s *sequencer) reset(tokenID types.TokenId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.next, tokenID)
}

// decodeFrame parses one WebSocket text frame into zero or more typed
// stream messages. Unparseable or non-array frames that look like
// control/heartbeat traffic are reported as a single heartbeat message
// rather than an error.
func decodeFrame(frame []byte, seq *sequencer) ([]*types.StreamMessage, error) {
	trimmed := trimSpace(frame)
	if len(trimmed) == 0 || string(trimmed) == "[]" {
		return []*types.StreamMessage{{Kind: types.StreamHeartbeat}}, nil
	}

	var raw []wireMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		var control map[string]interface{}
		if json.Unmarshal(frame, &control) == nil {
			return []*types.StreamMessage{{Kind: types.StreamHeartbeat}}, nil
		}
		return nil, err
	}

	out := make([]*types.StreamMessage, 0, len(raw))
	for _, m := range raw {
		msg, err := m.toStreamMessage(seq)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (w wireMessage) toStreamMessage(seq *sequencer) (*types.StreamMessage, error) {
	tokenID := types.TokenId(w.AssetID)
	ts, _ := strconv.ParseInt(w.TimestampStr, 10, 64)

	bids, err := toLevels(w.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := toLevels(w.Asks)
	if err != nil {
		return nil, err
	}

	base := &types.StreamMessage{
		TokenID:  tokenID,
		MarketID: types.MarketId(w.Market),
		Bids:     bids,
		Asks:     asks,
	}
	if ts > 0 {
		base.Timestamp = secondsOrMillis(ts)
	}

	switch w.EventType {
	case "book":
		seq.reset(tokenID)
		base.Kind = types.StreamSnapshot
		base.Sequence = seq.advance(tokenID)
	case "price_change":
		base.Kind = types.StreamDelta
		base.Sequence = seq.advance(tokenID)
	default:
		base.Kind = types.StreamHeartbeat
	}
	return base, nil
}

func trimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && isSpace(b[i]) {
		i++
	}
	for j > i && isSpace(b[j-1]) {
		j--
	}
	return b[i:j]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// secondsOrMillis interprets an upstream timestamp as milliseconds
// since epoch when it is too large to be plausible as seconds.
func secondsOrMillis(ts int64) time.Time {
	const secondsUpperBound = 1 << 32
	if ts > secondsUpperBound {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
