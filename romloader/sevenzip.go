package romloader

import (
	"fmt"
	"path/filepath"

	"github.com/bodgit/sevenzip"
)

func extractFrom7z(path string) (*Asset, error) {
	zr, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("romloader: open 7z: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isAssetFile(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("romloader: open 7z entry %s: %w", f.Name, err)
		}
		data, err := limitedRead(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("romloader: read 7z entry %s: %w", f.Name, err)
		}
		return &Asset{Name: filepath.Base(f.Name), Data: data}, nil
	}
	return nil, ErrNoAssetFile
}
