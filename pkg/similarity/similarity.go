package similarity

import (
	"slices"
	"strings"
)

// NGramSimilarity returns the Jaccard similarity of the n-word shingle sets of
// a and b. Returns 0 when either side has no shingles (the union is empty).
func NGramSimilarity(a, b string, n int) float64 {
	return jaccard(wordNGrams(a, n), wordNGrams(b, n))
}

// wordNGrams returns the set of space-joined n-word shingles of text. The text
// is split on whitespace as-is; callers normalize first when needed.
func wordNGrams(text string, n int) map[string]struct{} {
	words := strings.Fields(text)
	grams := make(map[string]struct{})
	if n <= 0 || len(words) < n {
		return grams
	}
	for i := 0; i+n <= len(words); i++ {
		grams[strings.Join(words[i:i+n], " ")] = struct{}{}
	}
	return grams
}

func jaccard(set1, set2 map[string]struct{}) float64 {
	intersection := 0
	for g := range set1 {
		if _, ok := set2[g]; ok {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// AreWordsSimilar reports whether two words are close enough to be treated as
// the same: equal, within the edit-distance threshold, or one contains the
// other with the shorter word at least 3 bytes long.
func AreWordsSimilar(a, b string, threshold float64) bool {
	if a == b {
		return true
	}
	if 1-StringSimilarity(a, b) >= threshold {
		return true
	}
	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}
	return strings.Contains(longer, shorter) && len(shorter) >= 3
}

// WordToPhraseSimilarity scores how well a single word matches a short phrase,
// handling the STT failure modes where a compound is split ("bookcase" vs
// "book case") or words are run together. The cascade tries, in order: exact
// normalized match, word against the phrase with spaces removed, the reverse
// direction, plain character similarity, and a sorted-character-multiset
// comparison for near-anagrams. The first branch that clears its threshold
// wins; otherwise the plain character similarity is returned.
func WordToPhraseSimilarity(word, phrase string) float64 {
	wordNorm := NormalizeText(word)
	phraseNorm := NormalizeText(phrase)

	if wordNorm == phraseNorm {
		return 1.0
	}

	phraseNoSpaces := strings.ReplaceAll(phraseNorm, " ", "")
	if direct := 1 - StringSimilarity(wordNorm, phraseNoSpaces); direct > 0.75 {
		return direct
	}

	wordNoSpaces := strings.ReplaceAll(wordNorm, " ", "")
	if reverse := 1 - StringSimilarity(wordNoSpaces, phraseNorm); reverse > 0.75 {
		return reverse
	}

	charSim := 1 - StringSimilarity(wordNorm, phraseNorm)
	if charSim > 0.7 {
		return charSim
	}

	wordChars := []rune(wordNoSpaces)
	phraseChars := []rune(phraseNoSpaces)
	slices.Sort(wordChars)
	slices.Sort(phraseChars)
	charSetSim := 1 - StringSimilarity(string(wordChars), string(phraseChars))
	lenDiff := len(wordNoSpaces) - len(phraseNoSpaces)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if charSetSim > 0.8 && lenDiff <= 2 {
		return charSetSim * 0.9
	}

	return charSim
}

// WordLevelSimilarity runs the token aligner between transcript and chunk and
// normalizes the score against a perfect alignment of every transcript token.
// The result is clamped to [0, 1]; an empty transcript scores 0.
func WordLevelSimilarity(transcript, chunk string) float64 {
	transcriptTokens := Tokenize(transcript)
	chunkTokens := Tokenize(chunk)
	if len(transcriptTokens) == 0 {
		return 0
	}
	alignment := AlignTokens(transcriptTokens, chunkTokens, 0)
	maxPossible := float64(2 * len(transcriptTokens))
	score := float64(alignment.Score) / maxPossible
	return min(max(score, 0), 1)
}

// CombinedSimilarity blends several similarity measures into one [0, 1] score
// for comparing a transcript against a text chunk offline:
//
//	0.50 word-level alignment
//	0.15 3-gram Jaccard
//	0.15 2-gram Jaccard
//	0.10 4-gram Jaccard
//	0.05 character similarity
//	0.05 substring containment (0.5 when either side contains the other)
func CombinedSimilarity(transcript, chunk string) float64 {
	normTranscript := NormalizeText(transcript)
	normChunk := NormalizeText(chunk)

	ngram2 := NGramSimilarity(normTranscript, normChunk, 2)
	ngram3 := NGramSimilarity(normTranscript, normChunk, 3)
	ngram4 := NGramSimilarity(normTranscript, normChunk, 4)
	wordLevel := WordLevelSimilarity(normTranscript, normChunk)
	charSim := 1 - StringSimilarity(normTranscript, normChunk)

	substring := 0.0
	if strings.Contains(normChunk, normTranscript) || strings.Contains(normTranscript, normChunk) {
		substring = 0.5
	}

	return wordLevel*0.5 +
		ngram3*0.15 +
		ngram2*0.15 +
		ngram4*0.1 +
		charSim*0.05 +
		substring*0.05
}
