package weights

import "math"

// Covariance estimation for the enhanced risk parity optimizer. Series are
// aligned trailing return windows with NaN marking missing dates; covariance
// is computed over pairwise-complete observations and then shrunk toward its
// diagonal to tame estimation noise.

// Overlap counts the non-missing entries of a series.
func Overlap(series []float64) int {
	n := 0
	for _, v := range series {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// PairwiseCovariance builds the sample covariance matrix for the given assets
// from their aligned series, using pairwise-complete observations with sample
// (n-1) normalization. Pairs with fewer than two common observations yield 0.
func PairwiseCovariance(series map[string][]float64, assets []string) [][]float64 {
	n := len(assets)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := pairCov(series[assets[i]], series[assets[j]])
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov
}

func pairCov(x, y []float64) float64 {
	m := len(x)
	if len(y) < m {
		m = len(y)
	}
	var sx, sy float64
	count := 0
	for k := 0; k < m; k++ {
		if math.IsNaN(x[k]) || math.IsNaN(y[k]) {
			continue
		}
		sx += x[k]
		sy += y[k]
		count++
	}
	if count < 2 {
		return 0
	}
	mx, my := sx/float64(count), sy/float64(count)

	acc := 0.0
	for k := 0; k < m; k++ {
		if math.IsNaN(x[k]) || math.IsNaN(y[k]) {
			continue
		}
		acc += (x[k] - mx) * (y[k] - my)
	}
	return acc / float64(count-1)
}

// Shrink blends the sample covariance toward its diagonal:
// (1-lambda)*cov + lambda*diag(cov). lambda is clamped to [0,1].
func Shrink(cov [][]float64, lambda float64) [][]float64 {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	n := len(cov)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				out[i][j] = cov[i][j]
			} else {
				out[i][j] = (1 - lambda) * cov[i][j]
			}
		}
	}
	return out
}

// validCovariance reports whether a covariance matrix is usable by the
// optimizer: finite everywhere with strictly positive variances.
func validCovariance(cov [][]float64) bool {
	for i := range cov {
		if cov[i][i] <= 0 {
			return false
		}
		for j := range cov[i] {
			if math.IsNaN(cov[i][j]) || math.IsInf(cov[i][j], 0) {
				return false
			}
		}
	}
	return true
}
