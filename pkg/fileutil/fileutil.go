// Package fileutil provides file utilities for run directories with tmp+mv semantics.
package fileutil

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/logging"
)

// Header format constants (must match pkg/format/format.go)
const (
	headerMagicNumber = 0x45324252 // "E2BR"
	headerVersion     = 1
	headerSize        = 20 // 4+4+8+4 bytes
)

// Exists returns true if the file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ColumnFileValid checks if a columnar array file exists and has valid header/size.
// Returns true if the file is valid and can be reused by a resumed run.
func ColumnFileValid(path string, expectedN uint64, expectedWidth uint32) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	headerBuf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, headerBuf); err != nil {
		return false
	}

	// magic(4) + version(4) + count(8) + width(4)
	magic := binary.LittleEndian.Uint32(headerBuf[0:4])
	version := binary.LittleEndian.Uint32(headerBuf[4:8])
	count := binary.LittleEndian.Uint64(headerBuf[8:16])
	width := binary.LittleEndian.Uint32(headerBuf[16:20])

	if magic != headerMagicNumber || version != headerVersion {
		return false
	}
	if count != expectedN || width != expectedWidth {
		return false
	}

	info, err := f.Stat()
	if err != nil {
		return false
	}
	expectedSize := int64(headerSize) + int64(expectedN)*int64(expectedWidth)
	return info.Size() == expectedSize
}

// WriteTmpThenMove writes to a temporary file then atomically moves it to the final path.
// The writeFunc receives the temporary path and should write the complete file.
// On success, the file is moved to outPath atomically.
func WriteTmpThenMove(tmpDir, outPath string, writeFunc func(tmpPath string) error) error {
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return fmt.Errorf("create tmp dir: %w", err)
	}

	tmpPath := filepath.Join(tmpDir, filepath.Base(outPath)+".tmp")

	if err := writeFunc(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := syncFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}

	outDir := filepath.Dir(outPath)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp to final: %w", err)
	}

	return nil
}

// syncFile opens, syncs, and closes a file.
func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	err = f.Sync()
	f.Close()
	return err
}

// CleanupTmpFiles removes all .tmp files in the given directory recursively.
func CleanupTmpFiles(dir string) error {
	log := logging.L()

	var removed int
	err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			// Continue walking even if individual paths fail
			return nil //nolint:nilerr
		}
		if !info.IsDir() && strings.HasSuffix(path, ".tmp") {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})

	if removed > 0 {
		log.Debug().Int("files_removed", removed).Str("dir", dir).Msg("cleaned up tmp files")
	}

	return err
}

// CopyDir copies the regular files under src into dst, creating directories
// as needed. Existing files in dst are overwritten.
func CopyDir(src, dst string) (int, error) {
	var copied int
	err := filepath.Walk(src, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := copyFile(path, target, info.Mode().Perm()); err != nil {
			return fmt.Errorf("copy %s: %w", rel, err)
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
