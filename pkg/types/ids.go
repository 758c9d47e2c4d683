package types

// TokenId identifies a single outcome token on the configured exchange.
type TokenId string

// MarketId identifies a market: a collection of outcome tokens that
// resolve together.
type MarketId string

// RelationId identifies an inferred logical relation between markets.
type RelationId string

// ClusterId identifies an assembled group of related markets.
type ClusterId string

func (t TokenId) String() string    { return string(t) }
func (m MarketId) String() string   { return string(m) }
func (r RelationId) String() string { return string(r) }
func (c ClusterId) String() string  { return string(c) }
