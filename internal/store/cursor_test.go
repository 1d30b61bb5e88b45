package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/skaldhq/skald/internal/pkg/errors"
)

func TestCursorRoundTrip(t *testing.T) {
	encoded := encodeCursor(1234, "doc-42")
	require.NotEmpty(t, encoded)

	decoded, err := decodeCursor(encoded)
	require.NoError(t, err)
	require.Equal(t, int64(1234), decoded.Ctime)
	require.Equal(t, "doc-42", decoded.ID)
}

func TestCursorEmptyMeansFirstPage(t *testing.T) {
	decoded, err := decodeCursor("")
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestCursorMalformed(t *testing.T) {
	for _, bad := range []string{"not base64 ###", "aGVsbG8=", "e30="} {
		_, err := decodeCursor(bad)
		require.ErrorIs(t, err, appErr.ErrInvalid, "cursor %q", bad)
	}
}
