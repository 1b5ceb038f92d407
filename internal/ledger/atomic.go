package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to a dot-prefixed temporary file in the target
// directory and renames it into place. A failed write leaves any previously
// committed file intact.
func writeFileAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	tmp := filepath.Join(dir, "."+base)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// appendCSVAtomic appends rows to a CSV file with create-with-header
// semantics: the header is written exactly once, when the file is first
// created. The append is performed by copying the existing file to a
// temporary path, appending the new rows, and renaming it over the original,
// so readers always see either the previous complete file or the new one.
func appendCSVAtomic(path string, header []string, rows [][]string) (err error) {
	dir, base := filepath.Split(path)
	tmp := filepath.Join(dir, "."+base)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	existing, openErr := os.Open(path)
	switch {
	case openErr == nil:
		_, err = io.Copy(f, existing)
		_ = existing.Close()
		if err != nil {
			return fmt.Errorf("copying existing ledger: %w", err)
		}

	case os.IsNotExist(openErr):
		w := csv.NewWriter(f)
		if err = w.Write(header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		w.Flush()
		if err = w.Error(); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}

	default:
		err = fmt.Errorf("opening existing ledger: %w", openErr)
		return err
	}

	w := csv.NewWriter(f)
	if err = w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
