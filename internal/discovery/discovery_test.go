package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestList_LocalSorted(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"c.laz", "a.laz", "b.las", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	got, err := NewLister(nil, false, nil).List(context.Background(), dir, "*.laz")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{filepath.Join(dir, "a.laz"), filepath.Join(dir, "c.laz")}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v want %v", got, want)
	}

	got, err = NewLister(nil, false, nil).List(context.Background(), dir, "*.copc.laz")
	if err != nil || len(got) != 0 {
		t.Fatalf("no matches expected: %v %v", got, err)
	}
}

func TestList_LocalBadPattern(t *testing.T) {
	if _, err := NewLister(nil, false, nil).List(context.Background(), t.TempDir(), "[.laz"); !errors.Is(err, ErrListing) {
		t.Fatalf("err=%v", err)
	}
}

const index = `<!DOCTYPE html><html><body>
<h1>Index of /tiles</h1>
<a href="../">Parent</a>
<a href="t_0001.laz">t_0001.laz</a>
<a href="t_0002.laz">t_0002.laz</a>
<a href="t_0002.laz">dup</a>
<a href="t_0002.laz.md5">checksum</a>
<a href="https://cdn.example.com/t_0003.laz">t_0003.laz</a>
<a name="anchor-only">x</a>
</body></html>`

func TestList_RemoteListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(index))
	}))
	defer srv.Close()

	base := srv.URL + "/tiles/"
	got, err := NewLister(srv.Client(), false, nil).List(context.Background(), base, "*.laz")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		srv.URL + "/tiles/t_0001.laz",
		srv.URL + "/tiles/t_0002.laz",
		"https://cdn.example.com/t_0003.laz",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("[%d] got %q want %q", i, got[i], want[i])
		}
	}

	asis, err := NewLister(srv.Client(), true, nil).List(context.Background(), base, "*.laz")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(asis) != 3 || asis[2] != "https://cdn.example.com/t_0003.laz" || asis[0] != "t_0001.laz" {
		t.Fatalf("href as-is: %v", asis)
	}
}

func TestList_RemoteStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := NewLister(srv.Client(), false, nil).List(context.Background(), srv.URL, "*.laz"); !errors.Is(err, ErrListing) {
		t.Fatalf("err=%v", err)
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("http://x") || IsRemote("./data") {
		t.Fatalf("IsRemote")
	}
}
