package medcorrect

import "strings"

// anchor pairs a token index in the original text with the index of the same
// token in the corrected text.
type anchor struct{ orig, corr int }

// commonTokens returns the longest common subsequence of a and b as anchors.
func commonTokens(a, b []string) []anchor {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			switch {
			case a[i-1] == b[j-1]:
				dp[i][j] = dp[i-1][j-1] + 1
			case dp[i-1][j] >= dp[i][j-1]:
				dp[i][j] = dp[i-1][j]
			default:
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	out := make([]anchor, dp[m][n])
	for i, j, k := m, n, len(out)-1; i > 0 && j > 0; {
		switch {
		case a[i-1] == b[j-1]:
			out[k] = anchor{i - 1, j - 1}
			i, j, k = i-1, j-1, k-1
		case dp[i-1][j] >= dp[i][j-1]:
			i--
		default:
			j--
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimRight(s, ".,;:!?\"')"))
}

// verifyCorrectedText keeps only the changes between original and corrected
// that match a declared correction. Undeclared edits are reverted to the
// original tokens. It returns the verified text and the confirmed
// corrections.
func verifyCorrectedText(original, corrected string, declared []Correction) (string, []Correction) {
	if original == corrected {
		return original, nil
	}
	orig := strings.Fields(original)
	corr := strings.Fields(corrected)

	type key struct{ from, to string }
	lookup := make(map[key]Correction, len(declared))
	for _, c := range declared {
		lookup[key{normalize(c.Original), normalize(c.Corrected)}] = c
	}

	var out []string
	var verified []Correction
	resolve := func(from, to []string) {
		if len(from) == 0 && len(to) == 0 {
			return
		}
		if c, ok := lookup[key{normalize(strings.Join(from, " ")), normalize(strings.Join(to, " "))}]; ok {
			out = append(out, to...)
			verified = append(verified, c)
			return
		}
		out = append(out, from...)
	}

	oi, ci := 0, 0
	for _, a := range commonTokens(orig, corr) {
		resolve(orig[oi:a.orig], corr[ci:a.corr])
		out = append(out, orig[a.orig])
		oi, ci = a.orig+1, a.corr+1
	}
	resolve(orig[oi:], corr[ci:])

	if len(verified) == 0 {
		return original, nil
	}
	return strings.Join(out, " "), verified
}
