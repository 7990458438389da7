package romloader

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/nwaples/rardecode/v2"
)

func extractFromRAR(path string) (*Asset, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("romloader: open rar: %w", err)
	}
	defer r.Close()

	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("romloader: read rar entry: %w", err)
		}
		if header.IsDir || !isAssetFile(header.Name) {
			continue
		}
		data, err := limitedRead(r)
		if err != nil {
			return nil, fmt.Errorf("romloader: read rar entry %s: %w", header.Name, err)
		}
		return &Asset{Name: filepath.Base(header.Name), Data: data}, nil
	}
	return nil, ErrNoAssetFile
}
