package transform_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/transform"
)

func TestZstdRoundTrip(t *testing.T) {
	plain := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")

	enc := transform.NewZstdEnc()
	_, err := enc.Push(plain[:20])
	require.NoError(t, err)
	_, err = enc.Push(plain[20:])
	require.NoError(t, err)
	compressed, err := enc.Finish()
	require.NoError(t, err)
	require.NotEmpty(t, compressed)

	dec := transform.NewZstdDec()
	for _, c := range compressed {
		_, err := dec.Push(c)
		require.NoError(t, err)
	}
	decoded, err := dec.Finish()
	require.NoError(t, err)

	var out bytes.Buffer
	for _, c := range decoded {
		out.Write(c)
	}
	require.Equal(t, plain, out.Bytes())
}

func TestZstdRoundTripEmpty(t *testing.T) {
	enc := transform.NewZstdEnc()
	compressed, err := enc.Finish()
	require.NoError(t, err)

	dec := transform.NewZstdDec()
	for _, c := range compressed {
		_, err := dec.Push(c)
		require.NoError(t, err)
	}
	decoded, err := dec.Finish()
	require.NoError(t, err)
	require.Empty(t, decoded)
}
