package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	blobmem "github.com/creatorscout/creatorscout/internal/blob/memory"
	"github.com/creatorscout/creatorscout/internal/hash/sha256"
)

func TestArchiveDeduplicatesByContent(t *testing.T) {
	t.Parallel()

	store := blobmem.New()
	a := New(store, sha256.New(), "pages", nil)
	ctx := context.Background()

	body := []byte("<html>about page</html>")
	a.Archive(ctx, "self_about", "https://www.youtube.com/@danacooks/about", body)
	a.Archive(ctx, "self_about", "https://www.youtube.com/@danacooks/about", body)
	require.Equal(t, 1, store.Len())

	a.Archive(ctx, "self_about", "https://www.youtube.com/@benbakes/about", []byte("<html>other</html>"))
	require.Equal(t, 2, store.Len())
}

func TestArchiveSkipsEmptyBody(t *testing.T) {
	t.Parallel()

	store := blobmem.New()
	a := New(store, sha256.New(), "pages", nil)
	a.Archive(context.Background(), "website", "https://creatorkitchen.com", nil)
	require.Zero(t, store.Len())
}
