package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "posts/a.gif", strings.NewReader("GIF89a"), 6, "image/gif"))

	rc, err := s.Read(ctx, "posts/a.gif")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "GIF89a", string(data))

	require.NoError(t, s.Delete(ctx, "posts/a.gif"))
	require.NoError(t, s.Delete(ctx, "posts/a.gif"))

	_, err = s.Read(ctx, "posts/a.gif")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = s.Write(context.Background(), "../outside.txt", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)

	_, err = s.Read(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}
