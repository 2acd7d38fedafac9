package model

import "strings"

// Business vocabulary column names.
const (
	ColDate         = "data"
	ColTicker       = "ticker"
	ColOpen         = "preco_abertura"
	ColClose        = "preco_fechamento"
	ColHigh         = "preco_maximo"
	ColLow          = "preco_minimo"
	ColVolume       = "volume_negociado"
	ColVariation    = "variacao_diaria"
	ColPctVariation = "percentual_variacao"
	ColMovingAvg3   = "media_movel_3d"
)

// aliases maps lowercase provider column names to the business vocabulary.
var aliases = map[string]string{
	"date":      ColDate,
	"datetime":  ColDate,
	"timestamp": ColDate,
	"t":         ColDate,
	"open":      ColOpen,
	"o":         ColOpen,
	"close":     ColClose,
	"c":         ColClose,
	"high":      ColHigh,
	"h":         ColHigh,
	"low":       ColLow,
	"l":         ColLow,
	"volume":    ColVolume,
	"v":         ColVolume,
	"symbol":    ColTicker,
}

// ObservationColumns are the columns every raw partition must carry once
// normalized. Ticker is optional on read: it is filled from the configured
// label when absent.
var ObservationColumns = []string{ColDate, ColOpen, ColClose, ColHigh, ColLow, ColVolume}

// Normalize maps a column name to the business vocabulary. Names are
// lowercased and trimmed first; unknown names are returned lowercased.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if canon, ok := aliases[n]; ok {
		return canon
	}
	return n
}

// Missing returns the names in required that are absent from have.
// have must already be normalized.
func Missing(have map[string]bool, required []string) []string {
	var out []string
	for _, c := range required {
		if !have[c] {
			out = append(out, c)
		}
	}
	return out
}
