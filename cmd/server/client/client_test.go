package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayloads(t *testing.T) {
	t.Run("keeps json values", func(t *testing.T) {
		payloads, err := parsePayloads([]string{
			`item1.hp.4={"value":5}`,
			`item1.asi.4={"type":"asi","assignments":{"str":2}}`,
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"value":5}`, string(payloads["item1.hp.4"]))
		assert.JSONEq(t, `{"type":"asi","assignments":{"str":2}}`, string(payloads["item1.asi.4"]))
	})

	t.Run("quotes bare strings", func(t *testing.T) {
		payloads, err := parsePayloads([]string{"item1.size.1=med"})
		require.NoError(t, err)
		assert.Equal(t, `"med"`, string(payloads["item1.size.1"]))
	})

	t.Run("value may contain equals", func(t *testing.T) {
		payloads, err := parsePayloads([]string{`k="a=b"`})
		require.NoError(t, err)
		assert.Equal(t, `"a=b"`, string(payloads["k"]))
	})

	t.Run("no flags", func(t *testing.T) {
		payloads, err := parsePayloads(nil)
		require.NoError(t, err)
		assert.Nil(t, payloads)
	})

	t.Run("rejects malformed flags", func(t *testing.T) {
		for _, flag := range []string{"novalue", "=5"} {
			_, err := parsePayloads([]string{flag})
			assert.Error(t, err, flag)
		}
	})

	t.Run("rejects duplicate keys", func(t *testing.T) {
		_, err := parsePayloads([]string{"k=1", "k=2"})
		assert.Error(t, err)
	})
}
