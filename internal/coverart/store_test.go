package coverart

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveIsContentAddressed(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "covers"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	data := []byte("not really a jpeg but stable bytes")
	first, err := store.Save(data, "image/jpeg")
	if err != nil {
		t.Fatalf("save first: %v", err)
	}

	second, err := store.Save(data, "image/jpeg")
	if err != nil {
		t.Fatalf("save second: %v", err)
	}
	if first != second {
		t.Fatalf("identical bytes produced different filenames: %q vs %q", first, second)
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("read covers dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 cover file, found %d", len(entries))
	}

	other, err := store.Save([]byte("different bytes entirely"), "image/png")
	if err != nil {
		t.Fatalf("save other: %v", err)
	}
	if other == first {
		t.Fatalf("different bytes reused filename %q", other)
	}
}

func TestSaveRejectsEmptyImage(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "covers"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Save(nil, "image/jpeg"); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestExtensionForMIME(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mime string
		want string
	}{
		{"image/jpeg", "jpg"},
		{"image/jpg", "jpg"},
		{"image/png", "png"},
		{"image/gif", "gif"},
		{"image/webp", "webp"},
		{"IMAGE/PNG", "png"},
		{"application/octet-stream", "jpg"},
		{"", "jpg"},
	}

	for _, tc := range cases {
		if got := ExtensionForMIME(tc.mime); got != tc.want {
			t.Fatalf("ExtensionForMIME(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}
