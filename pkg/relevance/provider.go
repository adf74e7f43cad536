package relevance

import "context"

// Similar is one neighbor returned by a similarity provider
type Similar struct {
	ID    string
	Score float64 // relevance in [0,1]
}

// SimilarityProvider is the optional external embedding collaborator.
// When nil, the semantic strategy yields no candidates and the semantic
// term is omitted from the score; there is no lexical substitute.
type SimilarityProvider interface {
	FindSimilar(ctx context.Context, text string, k int) ([]Similar, error)
}
