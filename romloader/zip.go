package romloader

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/flate"
)

func init() {
	// klauspost/compress's flate implementation decodes noticeably faster
	// than the standard library's for the deflate-compressed ZIPs most
	// ROM/snapshot/tape archives use.
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

func extractFromZIP(path string) (*Asset, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("romloader: open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isAssetFile(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("romloader: open zip entry %s: %w", f.Name, err)
		}
		data, err := limitedRead(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("romloader: read zip entry %s: %w", f.Name, err)
		}
		return &Asset{Name: filepath.Base(f.Name), Data: data}, nil
	}
	return nil, ErrNoAssetFile
}
