package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTXT(t *testing.T) {
	content := "[Acme Prod]\n" +
		"# database\n" +
		"DATABASE_URL=postgres://localhost/acme\n" +
		"\n" +
		"STRIPE_KEY = sk_live_123 \n" +
		"not a pair\n" +
		"=orphan-value\n" +
		"EMPTY=\n"

	parsed := ParseTXT(content)
	assert.Equal(t, "Acme Prod", parsed.Heading)
	assert.Equal(t, 2, parsed.Skipped)
	assert.Equal(t, []Pair{
		{Key: "DATABASE_URL", Value: "postgres://localhost/acme"},
		{Key: "STRIPE_KEY", Value: "sk_live_123"},
		{Key: "EMPTY", Value: ""},
	}, parsed.Pairs)
}

func TestParseTXTNoHeading(t *testing.T) {
	parsed := ParseTXT("A=1\nB=2")
	assert.Empty(t, parsed.Heading)
	assert.Len(t, parsed.Pairs, 2)
	assert.Zero(t, parsed.Skipped)
}

func TestKeyToName(t *testing.T) {
	assert.Equal(t, "Stripe Api Key", KeyToName("STRIPE_API_KEY"))
	assert.Equal(t, "Token", KeyToName("token"))
	assert.Equal(t, "Db  Url", KeyToName("DB__URL"))
}
