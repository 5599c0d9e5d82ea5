package replay

import (
	"path/filepath"
	"testing"
)

func TestWriteAndReadHeader(t *testing.T) {
	dir := t.TempDir()
	header := Header{
		SchemaVersion: HeaderSchemaVersion,
		MatchID:       "match-9",
		Parameters:    MatchParameters{"grid_size": 20, "tick_rate": 20},
		FilePointer:   "match.json.gz",
	}
	path := filepath.Join(dir, "example.header.json")
	if err := WriteHeader(path, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	loaded, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if loaded.SchemaVersion != header.SchemaVersion || loaded.MatchID != header.MatchID {
		t.Fatalf("unexpected header values: %+v", loaded)
	}
	if loaded.Parameters["grid_size"] != 20 {
		t.Fatalf("unexpected parameters: %#v", loaded.Parameters)
	}
	if loaded.FilePointer != header.FilePointer {
		t.Fatalf("unexpected file pointer: %q", loaded.FilePointer)
	}
}
