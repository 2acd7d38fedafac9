package model

import "time"

// DateLayout is the on-disk layout of the data column.
const DateLayout = time.DateOnly

// Observation is one trading day of one ticker, as stored in a raw partition.
// Parquet column names follow the business vocabulary (see columns.go).
type Observation struct {
	Date   string  `json:"data" parquet:"data"`
	Ticker string  `json:"ticker" parquet:"ticker"`
	Open   float64 `json:"preco_abertura" parquet:"preco_abertura"`
	Close  float64 `json:"preco_fechamento" parquet:"preco_fechamento"`
	High   float64 `json:"preco_maximo" parquet:"preco_maximo"`
	Low    float64 `json:"preco_minimo" parquet:"preco_minimo"`
	Volume int64   `json:"volume_negociado" parquet:"volume_negociado"`
}

// Derived is an Observation plus its daily variation and a short moving
// average of the close. PctVariation is NaN when Open is zero; MovingAvg3
// is NaN until three closes of the ticker are available.
type Derived struct {
	Date         string  `json:"data" parquet:"data"`
	Ticker       string  `json:"ticker" parquet:"ticker"`
	Open         float64 `json:"preco_abertura" parquet:"preco_abertura"`
	Close        float64 `json:"preco_fechamento" parquet:"preco_fechamento"`
	High         float64 `json:"preco_maximo" parquet:"preco_maximo"`
	Low          float64 `json:"preco_minimo" parquet:"preco_minimo"`
	Volume       int64   `json:"volume_negociado" parquet:"volume_negociado"`
	Variation    float64 `json:"variacao_diaria" parquet:"variacao_diaria"`
	PctVariation float64 `json:"percentual_variacao" parquet:"percentual_variacao"`
	MovingAvg3   float64 `json:"media_movel_3d" parquet:"media_movel_3d"`
}

// Weekly summarizes the derived rows of one ISO week.
type Weekly struct {
	Year          int32   `json:"ano" parquet:"ano"`
	Week          int32   `json:"semana" parquet:"semana"`
	MeanClose     float64 `json:"media_preco_fechamento" parquet:"media_preco_fechamento"`
	SumVolume     int64   `json:"soma_volume_negociado" parquet:"soma_volume_negociado"`
	MeanVariation float64 `json:"media_variacao_diaria" parquet:"media_variacao_diaria"`
}
