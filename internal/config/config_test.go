package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func strReader(s string) *strings.Reader { return strings.NewReader(s) }

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "config"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Core.ChunkAvg != 64*1024 {
		t.Fatalf("expected default chunk-avg, got %d", f.Core.ChunkAvg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := Default()
	f.User.Name = "Ada Lovelace"
	f.User.Email = "ada@example.com"
	f.Remote = map[string]*Remote{
		"origin": {URL: "https://example.com/repo.dits"},
	}
	f.Core.Compression = 9

	path := filepath.Join(t.TempDir(), "config")
	if err := Save(f, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.User.Name != f.User.Name || loaded.User.Email != f.User.Email {
		t.Fatalf("user section did not round-trip: %+v", loaded.User)
	}
	if loaded.Core.Compression != 9 {
		t.Fatalf("expected compression=9, got %d", loaded.Core.Compression)
	}
	origin, ok := loaded.Remote["origin"]
	if !ok {
		t.Fatal("expected origin remote to round-trip")
	}
	if origin.URL != "https://example.com/repo.dits" {
		t.Fatalf("unexpected remote url: %s", origin.URL)
	}
}

func TestUnknownKeysSurviveSaveRoundTrip(t *testing.T) {
	f := Default()
	raw := "[core]\n" +
		"\tchunkMin = 32768\n" +
		"\texperimentalFuture = yes\n" +
		"[widget \"thing\"]\n" +
		"\tcolor = blue\n"
	if err := f.Decode(strReader(raw)); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Core.ChunkMin != 32768 {
		t.Fatalf("expected chunkMin=32768 from spec-spelled key, got %d", f.Core.ChunkMin)
	}

	path := filepath.Join(t.TempDir(), "config")
	if err := Save(f, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	body, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if body.Core.ChunkMin != 32768 {
		t.Fatalf("expected chunkMin to survive round trip, got %d", body.Core.ChunkMin)
	}

	savedBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	saved := string(savedBytes)
	if !strings.Contains(saved, "experimentalFuture = yes") {
		t.Fatalf("expected unknown key inside [core] to survive save, got:\n%s", saved)
	}
	if !strings.Contains(saved, `[widget "thing"]`) || !strings.Contains(saved, "color = blue") {
		t.Fatalf("expected unknown section to survive save, got:\n%s", saved)
	}
}

func TestDecodeRejectsMalformedIni(t *testing.T) {
	f := Default()
	err := f.Decode(strReader("[core\nbroken"))
	if err == nil {
		t.Fatal("expected malformed INI to fail decoding")
	}
}
