package types

import (
	"encoding/json"
	"time"
)

// Market is a collection of outcome tokens that resolve together.
type Market struct {
	ID          MarketId  `json:"id"`
	Question    string    `json:"question"`
	Slug        string    `json:"slug"`
	Closed      bool      `json:"closed"`
	Active      bool      `json:"active"`
	Tokens      []Token   `json:"-"` // populated from outcomes + clobTokenIds
	CreatedAt   time.Time `json:"createdAt"`
	EndDate     time.Time `json:"endDate"`
	Description string    `json:"description"`
	Outcomes    string    `json:"outcomes"`     // JSON string: "[\"Yes\", \"No\"]"
	ClobTokens  string    `json:"clobTokenIds"` // JSON string: "[\"token1\", \"token2\"]"
}

// UnmarshalJSON parses the Gamma API's string-encoded outcome/token
// arrays into Tokens.
func (m *Market) UnmarshalJSON(data []byte) error {
	type Alias Market
	aux := &struct{ *Alias }{Alias: (*Alias)(m)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if m.Outcomes == "" || m.ClobTokens == "" {
		return nil
	}

	var outcomes []string
	var tokenIDs []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(m.ClobTokens), &tokenIDs); err != nil {
		return nil
	}

	m.Tokens = make([]Token, 0, len(outcomes))
	for i, outcome := range outcomes {
		if i < len(tokenIDs) {
			m.Tokens = append(m.Tokens, Token{
				TokenID: TokenId(tokenIDs[i]),
				Outcome: outcome,
			})
		}
	}
	return nil
}

// OutcomeCount reports how many outcome tokens this market carries.
func (m *Market) OutcomeCount() int { return len(m.Tokens) }

// GetTokenByOutcome returns the token for a specific outcome, matching
// YES/Yes and NO/No case-insensitively.
func (m *Market) GetTokenByOutcome(outcome string) *Token {
	for i := range m.Tokens {
		o := m.Tokens[i].Outcome
		if o == outcome ||
			(outcome == "YES" && o == "Yes") ||
			(outcome == "NO" && o == "No") {
			return &m.Tokens[i]
		}
	}
	return nil
}

// Token is a single outcome of a Market.
type Token struct {
	TokenID      TokenId `json:"token_id"`
	Outcome      string  `json:"outcome"`
	MinOrderSize Volume  `json:"-"`
	TickSize     Price   `json:"-"`
}

// OutcomeToken is a lightweight (token id, outcome label) pair used by
// stream subscriptions.
type OutcomeToken struct {
	TokenID TokenId
	Outcome string
}

// MarketSubscription tracks subscription state for a market across both
// binary (2-outcome) and multi-outcome (3+) markets.
type MarketSubscription struct {
	MarketID     MarketId
	MarketSlug   string
	Question     string
	Outcomes     []OutcomeToken
	SubscribedAt time.Time
}

// MarketsResponse is the paginated response from the market fetcher.
type MarketsResponse struct {
	Data     []Market `json:"data"`
	Count    int      `json:"count"`
	NextPage string   `json:"next_page,omitempty"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
}
