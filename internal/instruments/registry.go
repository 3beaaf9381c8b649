// Package instruments holds the static per-symbol trading parameters:
// upstream ticker, quoted spread, decimal precision and contract size.
package instruments

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Instrument describes one tradable symbol.
type Instrument struct {
	Symbol         string  `json:"symbol"`
	UpstreamTicker string  `json:"upstream_ticker"`
	Spread         float64 `json:"spread"`
	Decimals       int     `json:"decimals"`
	ContractSize   float64 `json:"contract_size"`
}

// defaultTickers maps trading symbols to the upstream provider's ticker ids.
var defaultTickers = map[string]string{
	// Major forex pairs
	"EURUSD": "EURUSD=X",
	"GBPUSD": "GBPUSD=X",
	"USDJPY": "USDJPY=X",
	"AUDUSD": "AUDUSD=X",
	"USDCAD": "USDCAD=X",
	"USDCHF": "USDCHF=X",
	"NZDUSD": "NZDUSD=X",
	"EURGBP": "EURGBP=X",
	"EURJPY": "EURJPY=X",
	"GBPJPY": "GBPJPY=X",
	"AUDJPY": "AUDJPY=X",
	"GBPAUD": "GBPAUD=X",
	"EURCAD": "EURCAD=X",
	"EURAUD": "EURAUD=X",

	// Commodities
	"GOLD":       "GC=F",
	"SILVER":     "SI=F",
	"OIL":        "CL=F",
	"COPPER":     "HG=F",
	"NATURALGAS": "NG=F",

	// Indices
	"SPX500":  "^GSPC",
	"NASDAQ":  "^IXIC",
	"DJI":     "^DJI",
	"FTSE100": "^FTSE",
	"DAX":     "^GDAXI",
	"NIKKEI":  "^N225",

	// Cryptocurrencies
	"BTCUSD": "BTC-USD",
	"ETHUSD": "ETH-USD",
	"BNBUSD": "BNB-USD",
	"XRPUSD": "XRP-USD",
	"ADAUSD": "ADA-USD",
	"SOLUSD": "SOL-USD",
}

// defaultUniverse is the polling order for the built-in symbol set.
var defaultUniverse = []string{
	"EURUSD", "GBPUSD", "USDJPY", "AUDUSD", "USDCAD", "USDCHF", "NZDUSD",
	"EURGBP", "EURJPY", "GBPJPY", "AUDJPY", "GBPAUD", "EURCAD", "EURAUD",
	"GOLD", "SILVER", "OIL", "COPPER", "NATURALGAS",
	"SPX500", "NASDAQ", "DJI", "FTSE100", "DAX", "NIKKEI",
	"BTCUSD", "ETHUSD", "BNBUSD", "XRPUSD", "ADAUSD", "SOLUSD",
}

var (
	commoditySet = map[string]bool{
		"GOLD": true, "SILVER": true, "OIL": true, "COPPER": true, "NATURALGAS": true,
	}
	indexSet = map[string]bool{
		"SPX500": true, "NASDAQ": true, "DJI": true, "FTSE100": true, "DAX": true, "NIKKEI": true,
	}
	cryptoSet = map[string]bool{
		"BTCUSD": true, "ETHUSD": true, "BNBUSD": true, "ADAUSD": true, "XRPUSD": true, "SOLUSD": true,
	}
)

// Classify synthesizes instrument parameters for a symbol without an
// explicit configuration entry.
func Classify(symbol string) Instrument {
	ticker, ok := defaultTickers[symbol]
	if !ok {
		ticker = symbol
	}
	return Instrument{
		Symbol:         symbol,
		UpstreamTicker: ticker,
		Spread:         spreadFor(symbol),
		Decimals:       decimalsFor(symbol),
		ContractSize:   contractSizeFor(symbol),
	}
}

func spreadFor(symbol string) float64 {
	if strings.Contains(symbol, "JPY") {
		return 0.02
	}
	if commoditySet[symbol] {
		if symbol == "GOLD" {
			return 0.50
		}
		return 0.05
	}
	if strings.Contains(symbol, "BTC") || strings.Contains(symbol, "ETH") {
		return 50.00
	}
	if indexSet[symbol] {
		if symbol == "NIKKEI" {
			return 10.00
		}
		return 5.00
	}
	return 0.0002
}

func decimalsFor(symbol string) int {
	if strings.Contains(symbol, "JPY") {
		return 2
	}
	if cryptoSet[symbol] || commoditySet[symbol] || indexSet[symbol] {
		return 2
	}
	return 5
}

func contractSizeFor(symbol string) float64 {
	if strings.Contains(symbol, "BTC") || strings.Contains(symbol, "ETH") {
		return 1
	}
	if strings.Contains(symbol, "XRP") || strings.Contains(symbol, "ADA") {
		return 100000
	}
	switch symbol {
	case "GOLD":
		return 100
	case "SILVER", "COPPER":
		return 5000
	case "OIL", "NATURALGAS":
		return 1000
	}
	if len(symbol) == 6 {
		return 100000
	}
	return 100
}

// Registry is the loaded instrument table, in polling order.
type Registry struct {
	order []string
	table map[string]Instrument
}

// Load builds a registry for the given universe. Symbols listed in the
// optional override file (a JSON array of instruments) use their explicit
// parameters; every other symbol is classified. An empty universe defaults
// to the built-in symbol set.
func Load(universe []string, overridePath string) (*Registry, error) {
	overrides := make(map[string]Instrument)
	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("error reading instruments file: %w", err)
		}
		var entries []Instrument
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("error parsing instruments file: %w", err)
		}
		for _, e := range entries {
			if e.Symbol == "" {
				return nil, fmt.Errorf("instruments file entry missing symbol")
			}
			overrides[e.Symbol] = e
		}
	}

	if len(universe) == 0 {
		universe = defaultUniverse
	}

	r := &Registry{table: make(map[string]Instrument, len(universe))}
	for _, symbol := range universe {
		if _, dup := r.table[symbol]; dup {
			continue
		}
		inst, ok := overrides[symbol]
		if !ok {
			inst = Classify(symbol)
		} else if inst.UpstreamTicker == "" {
			inst.UpstreamTicker = Classify(symbol).UpstreamTicker
		}
		r.order = append(r.order, symbol)
		r.table[symbol] = inst
	}
	return r, nil
}

// Get returns the instrument for a registered symbol.
func (r *Registry) Get(symbol string) (Instrument, bool) {
	inst, ok := r.table[symbol]
	return inst, ok
}

// Symbols returns the registered symbols in polling order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered symbols.
func (r *Registry) Len() int {
	return len(r.order)
}
