package tensor

import "fmt"

// WindowSeries builds supervised sequence-to-sequence cubes from a scalar
// series with a sliding window: example n presents series[n+t] at step t and
// is trained to predict series[n+t+1] at every step. It returns cubes of
// shape (1, len(series)-window, window).
func WindowSeries(series []float64, window int) (predictors, responses *Cube) {
	n := len(series) - window
	if window <= 0 || n <= 0 {
		panic(fmt.Sprintf("tensor: series of length %d cannot be windowed by %d", len(series), window))
	}
	predictors = New(1, n, window)
	responses = New(1, n, window)
	for j := 0; j < n; j++ {
		for t := 0; t < window; t++ {
			predictors.Set(0, j, t, series[j+t])
			responses.Set(0, j, t, series[j+t+1])
		}
	}
	return predictors, responses
}
