package s1_features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Indicator functions return a slice aligned with the input.
// Positions without enough trailing history hold NaN.

// Returns computes close[t]/close[t-k] - 1
func Returns(closes []float64, k int) []float64 {
	out := nanSlice(len(closes))
	for t := k; t < len(closes); t++ {
		prev := closes[t-k]
		if prev == 0 || math.IsNaN(prev) {
			continue
		}
		out[t] = closes[t]/prev - 1
	}
	return out
}

// SMA computes the simple moving average over a trailing window
func SMA(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for t := window - 1; t < len(values); t++ {
		w := values[t-window+1 : t+1]
		if hasNaN(w) {
			continue
		}
		out[t] = stat.Mean(w, nil)
	}
	return out
}

// EMA computes a span-based exponential moving average seeded with the first value.
// alpha = 2/(span+1), no bias adjustment.
func EMA(values []float64, span int) []float64 {
	out := nanSlice(len(values))
	if len(values) == 0 || span <= 0 {
		return out
	}

	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for t := 1; t < len(values); t++ {
		out[t] = alpha*values[t] + (1-alpha)*out[t-1]
	}
	return out
}

// RSI computes the Relative Strength Index from simple rolling means of gains and losses.
// avg_loss = 0 yields NaN so the row is excluded downstream.
func RSI(closes []float64, window int) []float64 {
	out := nanSlice(len(closes))
	if window <= 0 || len(closes) <= window {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for t := 1; t < len(closes); t++ {
		delta := closes[t] - closes[t-1]
		if delta > 0 {
			gains[t] = delta
		} else {
			losses[t] = -delta
		}
	}

	for t := window; t < len(closes); t++ {
		avgGain := stat.Mean(gains[t-window+1:t+1], nil)
		avgLoss := stat.Mean(losses[t-window+1:t+1], nil)
		if avgLoss == 0 {
			continue
		}
		out[t] = 100 - 100/(1+avgGain/avgLoss)
	}
	return out
}

// RollingStd computes the sample (N-1) standard deviation over a trailing window
func RollingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 {
		return out
	}
	for t := window - 1; t < len(values); t++ {
		w := values[t-window+1 : t+1]
		if hasNaN(w) {
			continue
		}
		out[t] = stat.StdDev(w, nil)
	}
	return out
}

// Lag shifts values forward by k positions
func Lag(values []float64, k int) []float64 {
	out := nanSlice(len(values))
	for t := k; t < len(values); t++ {
		out[t] = values[t-k]
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
