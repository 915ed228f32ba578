package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type counterDoc struct {
	Next  int      `json:"next"`
	Items []string `json:"items"`
}

func TestJSONFile_LoadMissingUsesInit(t *testing.T) {
	f := NewJSONFile(filepath.Join(t.TempDir(), "doc.json"), func() counterDoc {
		return counterDoc{Next: 1}
	})

	doc, err := f.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if doc.Next != 1 {
		t.Errorf("next = %d, want 1", doc.Next)
	}
}

func TestJSONFile_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	f := NewJSONFile[counterDoc](path, nil)

	err := f.Update(func(doc *counterDoc) error {
		doc.Items = append(doc.Items, "a")
		doc.Next++
		return nil
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	reopened := NewJSONFile[counterDoc](path, nil)
	doc, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(doc.Items) != 1 || doc.Items[0] != "a" {
		t.Errorf("items = %v, want [a]", doc.Items)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestJSONFile_UpdateErrorWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	f := NewJSONFile[counterDoc](path, nil)

	if err := f.Update(func(doc *counterDoc) error {
		doc.Items = []string{"keep"}
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	err := f.Update(func(doc *counterDoc) error {
		doc.Items = nil
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	doc, _ := f.Load()
	if len(doc.Items) != 1 {
		t.Errorf("items = %v, want unchanged [keep]", doc.Items)
	}
}

func TestJSONFile_ConcurrentUpdates(t *testing.T) {
	f := NewJSONFile[counterDoc](filepath.Join(t.TempDir(), "doc.json"), nil)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Update(func(doc *counterDoc) error {
				doc.Next++
				return nil
			}); err != nil {
				t.Errorf("Update error: %v", err)
			}
		}()
	}
	wg.Wait()

	doc, err := f.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if doc.Next != n {
		t.Errorf("next = %d, want %d", doc.Next, n)
	}
}

func TestJSONFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	os.WriteFile(path, []byte("{broken"), 0644)

	f := NewJSONFile[counterDoc](path, nil)
	if _, err := f.Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteJSONAtomic(path, map[string]int{"a": 1}); err != nil {
		t.Fatalf("WriteJSONAtomic error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "{\n  \"a\": 1\n}" {
		t.Errorf("content = %q", data)
	}
}
