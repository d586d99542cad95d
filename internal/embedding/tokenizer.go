package embedding

// BERT-style special token IDs used by the sentence model input.
const (
	bertCLS = 101
	bertSEP = 102
)

// CLIP byte-pair special token IDs and fixed context length.
const (
	clipStartOfText = 49406
	clipEndOfText   = 49407
	clipContextLen  = 77
)

// Tokenize splits text into words and produces padded BERT-style inputs
// (input_ids, attention_mask, token_type_ids) up to maxTokens. Token IDs are
// hash-derived; a real vocabulary can be plugged in without changing callers.
func Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = bertCLS
	attentionMask[0] = 1

	pos := 1
	for _, word := range SplitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word) % 30000)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = bertSEP
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// TokenizeClip produces the fixed-length 77-token input for the CLIP text
// encoder: start token, hash-derived word tokens, end token, zero padding.
func TokenizeClip(text string) []int64 {
	ids := make([]int64, clipContextLen)
	ids[0] = clipStartOfText
	pos := 1
	for _, word := range SplitWords(text) {
		if pos >= clipContextLen-1 {
			break
		}
		ids[pos] = int64(HashString(word) % 49000)
		pos++
	}
	ids[pos] = clipEndOfText
	return ids
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	var words []string
	word := ""
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if word != "" {
				words = append(words, word)
				word = ""
			}
		} else {
			word += string(r)
		}
	}
	if word != "" {
		words = append(words, word)
	}
	return words
}

// HashString returns a deterministic non-negative hash for use as a token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
