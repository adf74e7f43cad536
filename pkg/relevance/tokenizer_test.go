package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTokens(t *testing.T) {
	tok := ExtractTokens(`Implemented the JWT AuthMiddleware, with "token refresh" support!`)

	assert.Contains(t, tok.Keywords, "implemented")
	assert.Contains(t, tok.Keywords, "token")
	assert.NotContains(t, tok.Keywords, "the", "stop words dropped")
	assert.NotContains(t, tok.Keywords, "with", "short tokens dropped")

	assert.Contains(t, tok.TechTerms, "JWT")
	assert.Contains(t, tok.TechTerms, "AuthMiddleware")

	assert.Equal(t, []string{"token refresh"}, tok.Quoted)
}

func TestExtractTokensDedupes(t *testing.T) {
	tok := ExtractTokens("deploy deploy deploy DEPLOY")
	assert.Equal(t, []string{"deploy"}, tok.Keywords)
}

func TestLexicalOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, LexicalOverlap(
		"database migration rollback strategy",
		"database migration rollback strategy",
	), 1e-9)

	assert.Equal(t, 0.0, LexicalOverlap("database migration", "frontend styling"))

	partial := LexicalOverlap("database migration rollback", "database migration testing")
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}

func TestLexicalOverlapEmpty(t *testing.T) {
	assert.Equal(t, 0.0, LexicalOverlap("", ""))
	assert.Equal(t, 0.0, LexicalOverlap("a an the", "of in at"))
}
