package universe

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Instrument is one tradable symbol with its liquidity weight. Immutable per
// scan cycle; the whole universe is reloaded on every run.
type Instrument struct {
	Symbol          string  `json:"symbol"`
	LiquidityWeight float64 `json:"liquidity_weight"`
}

// Load reads "symbol,weight" records (one per line, '#' comments allowed),
// sorts them descending by weight and caps the count. A line without a weight
// defaults to 1.0 so plain ticker lists keep working.
func Load(path string, maxSymbols int) ([]Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	defer f.Close()

	var out []Instrument
	seen := map[string]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		symbol := strings.ToUpper(strings.TrimSpace(parts[0]))
		if symbol == "" || seen[symbol] {
			continue
		}
		weight := 1.0
		if len(parts) > 1 {
			if w, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err == nil {
				weight = w
			}
		}
		seen[symbol] = true
		out = append(out, Instrument{Symbol: symbol, LiquidityWeight: weight})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}

	// Heaviest first; ties resolved by symbol so cycles are deterministic.
	sort.Slice(out, func(i, j int) bool {
		if out[i].LiquidityWeight != out[j].LiquidityWeight {
			return out[i].LiquidityWeight > out[j].LiquidityWeight
		}
		return out[i].Symbol < out[j].Symbol
	})

	if maxSymbols > 0 && len(out) > maxSymbols {
		out = out[:maxSymbols]
	}
	return out, nil
}
