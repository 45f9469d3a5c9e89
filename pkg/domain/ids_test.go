package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "escrowd/pkg/domain"
)

func TestEscrowIDParseRoundTrip(t *testing.T) {
	original := id.NewEscrowID()
	require.False(t, original.IsNil())

	parsed, err := id.ParseEscrowID(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)

	_, err = id.ParseEscrowID("not-a-uuid")
	require.Error(t, err)
}

func TestEscrowIDJSONIsText(t *testing.T) {
	original := id.NewEscrowID()

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+original.String()+`"`, string(data))

	var decoded id.EscrowID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)

	var bad id.EscrowID
	require.Error(t, json.Unmarshal([]byte(`"nope"`), &bad))
}

func TestEventIDParseRoundTrip(t *testing.T) {
	original := id.NewEventID()
	require.False(t, original.IsNil())

	parsed, err := id.ParseEventID(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)

	assert.True(t, id.EventID{}.IsNil())
}

func TestParsePartyID(t *testing.T) {
	party, err := id.ParsePartyID("buyer-42")
	require.NoError(t, err)
	assert.Equal(t, "buyer-42", party.String())
	assert.False(t, party.IsNil())

	for _, blank := range []string{"", "   ", "\t"} {
		_, err := id.ParsePartyID(blank)
		require.Error(t, err)
	}
}
