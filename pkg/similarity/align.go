package similarity

// Alignment scoring constants. The row pruning bound in [AlignTokens] assumes
// scoreExact is the maximum per-token score; keep them in sync.
const (
	scoreExact    = 2
	scoreFuzzy    = 1
	scoreMismatch = -1
	scoreGap      = -1
)

// Traceback directions stored per DP cell.
const (
	traceNone byte = iota
	traceDiag
	traceUp
	traceLeft
)

// TokenAlignment is the result of a local alignment between a query token
// sequence and a window token sequence. Start and End are inclusive indices
// into the window. A Score of 0 with indices (0, 0) means no viable alignment.
type TokenAlignment struct {
	Score int
	Start int
	End   int
}

// wordMatchScore scores a single token pair: full credit for equality, partial
// credit when the tokens are within one edit of each other.
func wordMatchScore(a, b string) int {
	if a == b {
		return scoreExact
	}
	if Levenshtein(a, b) <= 1 {
		return scoreFuzzy
	}
	return scoreMismatch
}

// AlignTokens runs a Smith-Waterman local alignment of query against window
// with unit gap penalties and the token scoring of [wordMatchScore].
//
// beatScore enables branch-and-bound pruning: after each completed row the
// best conceivable final score (the row maximum plus an exact match for every
// remaining query token) is compared against beatScore, and the alignment is
// abandoned when it provably cannot reach it. Callers evaluating several
// windows pass the best score found so far; pass 0 to always run to
// completion.
func AlignTokens(query, window []string, beatScore int) TokenAlignment {
	m, n := len(query), len(window)
	if m == 0 || n == 0 {
		return TokenAlignment{}
	}

	dp := make([][]int, m+1)
	trace := make([][]byte, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		trace[i] = make([]byte, n+1)
	}

	maxScore := 0
	maxI, maxJ := 0, 0

	for i := 1; i <= m; i++ {
		rowMax := 0
		for j := 1; j <= n; j++ {
			diag := dp[i-1][j-1] + wordMatchScore(query[i-1], window[j-1])
			up := dp[i-1][j] + scoreGap
			left := dp[i][j-1] + scoreGap

			best := 0
			dir := traceNone
			if diag > best {
				best = diag
				dir = traceDiag
			}
			if up > best {
				best = up
				dir = traceUp
			}
			if left > best {
				best = left
				dir = traceLeft
			}

			dp[i][j] = best
			if best > 0 {
				trace[i][j] = dir
			}

			if best > maxScore {
				maxScore = best
				maxI, maxJ = i, j
			}
			if best > rowMax {
				rowMax = best
			}
		}

		// Even if every remaining query token matched exactly, this window
		// cannot beat the best candidate seen so far.
		theoreticalMax := rowMax + (m-i)*scoreExact
		if theoreticalMax < beatScore {
			break
		}
	}

	if maxScore <= 0 {
		return TokenAlignment{}
	}

	i, j := maxI, maxJ
	end := maxJ - 1
walk:
	for i > 0 && j > 0 {
		switch trace[i][j] {
		case traceDiag:
			i--
			j--
		case traceUp:
			i--
		case traceLeft:
			j--
		default:
			break walk
		}
	}

	return TokenAlignment{Score: maxScore, Start: j, End: end}
}
