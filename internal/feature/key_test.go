package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_String(t *testing.T) {
	k := Key{Tier: "gloss", Feature: "primary"}
	assert.Equal(t, "gloss:primary", k.String())
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("transcription:form")
	require.NoError(t, err)
	assert.Equal(t, Key{Tier: "transcription", Feature: "form"}, k)
}

func TestParseKey_Malformed(t *testing.T) {
	for _, s := range []string{"", "gloss", ":primary", "gloss:", ":"} {
		_, err := ParseKey(s)
		assert.Error(t, err, "key %q should be rejected", s)
	}
}

func TestParseKey_ExtraColonStaysInFeature(t *testing.T) {
	// Only the first colon separates tier from feature.
	k, err := ParseKey("a:b:c")
	require.NoError(t, err)
	assert.Equal(t, "a", k.Tier)
	assert.Equal(t, "b:c", k.Feature)
}

func TestCheckMetaField(t *testing.T) {
	assert.True(t, CheckMetaField("parent", KindRef))
	assert.True(t, CheckMetaField("index", KindInt))

	assert.False(t, CheckMetaField("parent", KindInt))
	assert.False(t, CheckMetaField("index", KindRef))
	assert.False(t, CheckMetaField("active", KindBool), "meta:active is implicit, not declarable")
	assert.False(t, CheckMetaField("anything", KindStr))
}
