package knowledge

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Knowledge file locations inside a data directory.
const (
	FAQPath         = "public/faq.json"
	RegulationsPath = "public/regulations.json"
	DialogsPath     = "synthetic/support_dialogs.json"
)

// LoadDir loads every knowledge file found under dataDir. Missing files are
// skipped so a partial data directory still yields a usable corpus; an empty
// result is an error.
func LoadDir(dataDir string) ([]Document, error) {
	loaders := []struct {
		path string
		load func(r io.Reader) ([]Document, error)
	}{
		{FAQPath, LoadFAQ},
		{RegulationsPath, LoadRegulations},
		{DialogsPath, LoadDialogs},
	}

	var docs []Document
	for _, l := range loaders {
		path := filepath.Join(dataDir, l.path)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening knowledge file %s: %w", path, err)
		}
		loaded, err := l.load(f)
		closeErr := f.Close()
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("closing %s: %w", path, closeErr)
		}
		docs = append(docs, loaded...)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no knowledge files found under %s", dataDir)
	}
	return docs, nil
}
