package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skaldhq/skald/internal/model"
)

func TestListItemsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/knowledge/items", r.URL.Path)
		require.Equal(t, "alice", r.URL.Query().Get("owner"))
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		resp := listItemsResponse{}
		if r.URL.Query().Get("cursor") == "" {
			resp.Items = []*model.RemoteItem{
				{Name: "a.txt", Metadata: model.RemoteItemMetadata{URL: "http://files/a.txt"}},
				{Name: "b.md", Metadata: model.RemoteItemMetadata{URL: "http://files/b.md"}},
			}
			resp.NextCursor = "page2"
		} else {
			require.Equal(t, "page2", r.URL.Query().Get("cursor"))
			resp.Items = []*model.RemoteItem{
				{Name: "c.pdf", Metadata: model.RemoteItemMetadata{URL: "http://files/c.pdf"}},
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := New(srv.URL, "sekrit")

	items, next, err := client.ListItems(context.Background(), "alice", "", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "page2", next)

	items, next, err = client.ListItems(context.Background(), "alice", next, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Empty(t, next)
	require.Equal(t, "c.pdf", items[0].Name)
}

func TestListItemsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	_, _, err := client.ListItems(context.Background(), "alice", "", 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file body"))
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "a.txt")
	client := New(srv.URL, "")
	require.NoError(t, client.Download(context.Background(), srv.URL+"/a.txt", dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "file body", string(data))
}

func TestDownloadErrorLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "a.txt")
	client := New(srv.URL, "")
	err := client.Download(context.Background(), srv.URL+"/a.txt", dst)
	require.Error(t, err)
	_, statErr := os.Stat(dst)
	require.True(t, os.IsNotExist(statErr))
}
