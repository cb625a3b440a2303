package api

// ExchangeStatusResponse from GET /exchange/status
type ExchangeStatusResponse struct {
	ExchangeActive      bool   `json:"exchange_active"`
	TradingActive       bool   `json:"trading_active"`
	EstimatedResumeTime string `json:"exchange_estimated_resume_time,omitempty"`
}

// BalanceResponse from GET /portfolio/balance
type BalanceResponse struct {
	Balance int64 `json:"balance"` // cents
}

// MarketsResponse from GET /markets
type MarketsResponse struct {
	Markets []APIMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

// APIMarket represents a market from the Kalshi API.
type APIMarket struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Status      string `json:"status"`
	MarketType  string `json:"market_type"`
	Result      string `json:"result"`

	// Prices in cents
	YesBid    int `json:"yes_bid"`
	YesAsk    int `json:"yes_ask"`
	NoBid     int `json:"no_bid"`
	NoAsk     int `json:"no_ask"`
	LastPrice int `json:"last_price"`

	// Prices as strings (sub-penny)
	YesBidDollars    string `json:"yes_bid_dollars"`
	YesAskDollars    string `json:"yes_ask_dollars"`
	NoBidDollars     string `json:"no_bid_dollars"`
	NoAskDollars     string `json:"no_ask_dollars"`
	LastPriceDollars string `json:"last_price_dollars"`

	// Volume
	Volume       int64 `json:"volume"`
	Volume24h    int64 `json:"volume_24h"`
	OpenInterest int64 `json:"open_interest"`

	// Timestamps (ISO 8601)
	OpenTime       string `json:"open_time"`
	CloseTime      string `json:"close_time"`
	ExpirationTime string `json:"expiration_time"`
	CreatedTime    string `json:"created_time"`
}

// SingleMarketResponse from GET /markets/{ticker}
type SingleMarketResponse struct {
	Market APIMarket `json:"market"`
}

// OrderbookResponse from GET /markets/{ticker}/orderbook
type OrderbookResponse struct {
	Orderbook APIOrderbook `json:"orderbook"`
}

// APIOrderbook represents the orderbook from the Kalshi API. Both sides are
// resting bids; a NO bid at p is a YES offer at 100-p.
type APIOrderbook struct {
	// Levels as [price_cents, quantity] pairs
	Yes [][]int `json:"yes"`
	No  [][]int `json:"no"`
}

// BestBidAsk returns the best YES bid and the YES ask implied by the best
// NO bid, in cents. Either side is reported missing when it has no level
// with positive quantity.
func (ob APIOrderbook) BestBidAsk() (bid int, hasBid bool, ask int, hasAsk bool) {
	if p, ok := bestLevel(ob.Yes); ok {
		bid, hasBid = p, true
	}
	if p, ok := bestLevel(ob.No); ok {
		ask, hasAsk = 100-p, true
	}
	return bid, hasBid, ask, hasAsk
}

func bestLevel(levels [][]int) (int, bool) {
	best, found := 0, false
	for _, lvl := range levels {
		if len(lvl) < 2 || lvl[1] <= 0 {
			continue
		}
		if !found || lvl[0] > best {
			best, found = lvl[0], true
		}
	}
	return best, found
}

// GetMarketsOptions configures a GetMarkets request.
type GetMarketsOptions struct {
	Limit        int
	Cursor       string
	EventTicker  string
	SeriesTicker string
	Tickers      []string
	Status       string
	MaxPages     int // GetAllMarketsWithOptions only; 0 = unlimited
}
