package transform_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/location"
	"aruna.io/aruna/pkg/transform"
)

func TestFilterTrimsToEditList(t *testing.T) {
	f := transform.NewFilter([]location.EditEntry{{Offset: 4, Length: 6}})

	var out bytes.Buffer
	for _, chunk := range [][]byte{[]byte("0123"), []byte("456789"), []byte("abcdef")} {
		emitted, err := f.Push(chunk)
		require.NoError(t, err)
		for _, c := range emitted {
			out.Write(c)
		}
	}
	trailing, err := f.Finish()
	require.NoError(t, err)
	require.Empty(t, trailing)

	require.Equal(t, "456789", out.String())
}

func TestFilterMultipleEntriesAcrossChunks(t *testing.T) {
	f := transform.NewFilter([]location.EditEntry{
		{Offset: 0, Length: 2},
		{Offset: 8, Length: 2},
	})

	var out bytes.Buffer
	for _, chunk := range [][]byte{[]byte("01234"), []byte("56789")} {
		emitted, err := f.Push(chunk)
		require.NoError(t, err)
		for _, c := range emitted {
			out.Write(c)
		}
	}

	require.Equal(t, "0189", out.String())
}

func TestFilterNoEditsIsPassthrough(t *testing.T) {
	f := transform.NewFilter(nil)

	out, err := f.Push([]byte("unchanged"))
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("unchanged")}, out)
}
