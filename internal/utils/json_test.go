package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalNoEscape(t *testing.T) {
	out, err := MarshalNoEscape(map[string]string{"action": "transfer <dest> & context"})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"transfer <dest> & context"}`, string(out))
	assert.NotContains(t, string(out), `<`)
}
