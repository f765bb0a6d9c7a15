// Copyright 2025 The Marketscribe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package marketdata fetches and formats stock quotes. The provider is a
// black box to the rest of the system: a quote, nil for "no data", or an
// error.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Quote is a point-in-time snapshot for one symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Currency      string    `json:"currency"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	DayHigh       float64   `json:"day_high"`
	DayLow        float64   `json:"day_low"`
	Volume        int64     `json:"volume"`
	MarketCap     int64     `json:"market_cap"`
	AsOf          time.Time `json:"as_of"`
}

// Provider returns the current quote for a symbol. A nil quote with a nil
// error means no data is available; callers degrade to a "not available"
// text block.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// FormatMarkdown renders a quote as the markdown block injected into
// prompts.
func FormatMarkdown(q *Quote) string {
	if q == nil {
		return ""
	}
	var sb strings.Builder
	name := q.Name
	if name == "" {
		name = q.Symbol
	}
	fmt.Fprintf(&sb, "**%s (%s)**\n\n", name, q.Symbol)
	fmt.Fprintf(&sb, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Price | %s %.2f |\n", q.Currency, q.Price)
	fmt.Fprintf(&sb, "| Change | %+.2f (%+.2f%%) |\n", q.Change, q.ChangePercent)
	fmt.Fprintf(&sb, "| Day range | %.2f – %.2f |\n", q.DayLow, q.DayHigh)
	if q.Volume > 0 {
		fmt.Fprintf(&sb, "| Volume | %d |\n", q.Volume)
	}
	if q.MarketCap > 0 {
		fmt.Fprintf(&sb, "| Market cap | %d |\n", q.MarketCap)
	}
	if !q.AsOf.IsZero() {
		fmt.Fprintf(&sb, "| As of | %s |\n", q.AsOf.UTC().Format(time.RFC3339))
	}
	return sb.String()
}

// Unavailable is the degraded text block used when no quote exists.
func Unavailable(symbol string) string {
	return fmt.Sprintf("Market data for %s is not available.", symbol)
}
