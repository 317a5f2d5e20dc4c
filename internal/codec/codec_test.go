package codec

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID      uuid.UUID `json:"id"`
	Tx      uint64    `json:"tx"`
	Deleted *uint64   `json:"deleted,omitempty"`
}

func TestCodecsPreservePayloads(t *testing.T) {
	at := uint64(4)
	in := payload{ID: uuid.New(), Tx: 3, Deleted: &at}
	for _, name := range []string{"json", "cbor", ""} {
		t.Run(name, func(t *testing.T) {
			c, err := New(name)
			require.NoError(t, err)
			raw, err := c.Marshal(in)
			require.NoError(t, err)
			var out payload
			require.NoError(t, c.Unmarshal(raw, &out))
			assert.Equal(t, in, out)
			assert.NotEmpty(t, c.ContentType())
		})
	}
}

func TestCBORIsDeterministic(t *testing.T) {
	c, err := NewCBOR()
	require.NoError(t, err)
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := c.Marshal(m)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestUnknownCodec(t *testing.T) {
	_, err := New("xml")
	assert.ErrorContains(t, err, "unknown codec")
}
