package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"docharvest/pkg/storage"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// WriteZip writes a flat deflate archive of every path that still exists and
// is non-empty. Entries are named by base name. It returns the number of
// files added.
func WriteZip(paths []string, archivePath string) (int, error) {
	if dir := filepath.Dir(archivePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	tempPath := archivePath + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}

	added, err := writeEntries(out, paths)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return 0, err
	}

	if err := os.Rename(tempPath, archivePath); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return added, nil
}

func writeEntries(w io.Writer, paths []string) (int, error) {
	zw := zip.NewWriter(w)
	added := 0
	names := make(map[string]struct{}, len(paths))

	for _, path := range paths {
		if !storage.NonEmptyFile(path) {
			continue
		}
		name := filepath.Base(path)
		if _, dup := names[name]; dup {
			continue
		}
		names[name] = struct{}{}

		if err := addFile(zw, path, name); err != nil {
			zw.Close()
			return 0, err
		}
		added++
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish archive: %w", err)
	}
	return added, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", name, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("failed to compress %s: %w", name, err)
	}
	return nil
}

// WriteFailureReport writes one filename per line. Nothing is written when
// failed is empty. It reports whether the file was written.
func WriteFailureReport(failed []string, reportPath string) (bool, error) {
	if len(failed) == 0 {
		return false, nil
	}
	if err := os.WriteFile(reportPath, []byte(strings.Join(failed, "\n")), 0644); err != nil {
		return false, fmt.Errorf("failed to write failure report: %w", err)
	}
	return true, nil
}

// Publish copies the archive into bucket under key
func Publish(ctx context.Context, bucket *blob.Bucket, key, archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: "application/zip"})
	if err != nil {
		return fmt.Errorf("open %s for writing: %w", key, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	return nil
}

// PublishURL opens the bucket at bucketURL (file://, s3://, mem://) and
// stores the archive under its base name
func PublishURL(ctx context.Context, bucketURL, archivePath string) (string, error) {
	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return "", fmt.Errorf("open bucket: %w", err)
	}
	defer bkt.Close()

	key := filepath.Base(archivePath)
	if err := Publish(ctx, bkt, key, archivePath); err != nil {
		return "", err
	}
	return key, nil
}
