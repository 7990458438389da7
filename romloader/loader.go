// Package romloader loads ROM, snapshot and tape assets from plain files
// or from common archive formats (ZIP, 7z, gzip, RAR), the way the
// teacher's romloader package loads .sms images — generalized here to
// the handful of extensions a Spectrum emulator cares about, and backed
// by an LRU cache so re-opening the same archive repeatedly (as a
// file-picker UI tends to do) doesn't re-decompress it every time.
package romloader

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06}
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21}
)

const maxAssetSize = 8 * 1024 * 1024

var (
	ErrNoAssetFile       = errors.New("romloader: no recognized asset file found in archive")
	ErrUnsupportedFormat = errors.New("romloader: unsupported file format")
	ErrFileTooLarge      = errors.New("romloader: file exceeds maximum size limit")
)

// assetExtensions lists the file extensions LoadAsset will pull out of an
// archive: system ROM dumps, the three snapshot formats, and the two tape
// formats.
var assetExtensions = map[string]bool{
	".rom": true, ".bin": true,
	".sna": true, ".z80": true, ".szx": true,
	".tap": true, ".tzx": true,
}

type formatType int

const (
	formatUnknown formatType = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

// Asset is a single decoded file pulled from disk or an archive member.
type Asset struct {
	Name string
	Data []byte
}

var decodeCache, _ = lru.New[string, *Asset](32)

// LoadAsset loads the asset at path, automatically detecting and
// extracting from an archive if path is not itself a recognized asset
// file. Archive contents are cached by path so repeated loads of the
// same archive (e.g. re-inserting a tape from a file browser) are free
// after the first.
func LoadAsset(path string) (*Asset, error) {
	if cached, ok := decodeCache.Get(path); ok {
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("romloader: open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("romloader: read header: %w", err)
	}
	header = header[:n]

	format := detectFormat(header, path)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("romloader: seek: %w", err)
	}

	var asset *Asset
	switch format {
	case formatRaw:
		data, err := limitedRead(f)
		if err != nil {
			return nil, fmt.Errorf("romloader: read asset: %w", err)
		}
		asset = &Asset{Name: filepath.Base(path), Data: data}
	case formatZIP:
		asset, err = extractFromZIP(path)
	case format7z:
		asset, err = extractFrom7z(path)
	case formatGzip:
		asset, err = extractFromGzip(path)
	case formatRAR:
		asset, err = extractFromRAR(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	decodeCache.Add(path, asset)
	return asset, nil
}

func detectFormat(header []byte, path string) formatType {
	ext := strings.ToLower(filepath.Ext(path))

	if len(header) >= 4 {
		if bytes.HasPrefix(header, magicZIP) || bytes.HasPrefix(header, magicZIPEnd) {
			return formatZIP
		}
		if bytes.HasPrefix(header, magicRAR) {
			return formatRAR
		}
	}
	if len(header) >= 6 && bytes.HasPrefix(header, magic7z) {
		return format7z
	}
	if len(header) >= 2 && bytes.HasPrefix(header, magicGzip) {
		return formatGzip
	}

	switch ext {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRAR
	}
	if assetExtensions[ext] {
		return formatRaw
	}
	return formatUnknown
}

func isAssetFile(name string) bool {
	return assetExtensions[strings.ToLower(filepath.Ext(name))]
}

func limitedRead(r io.Reader) ([]byte, error) {
	lr := io.LimitReader(r, maxAssetSize+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if len(data) > maxAssetSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func extractFromGzip(path string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("romloader: open gzip: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("romloader: gzip header: %w", err)
	}
	defer gz.Close()

	data, err := limitedRead(gz)
	if err != nil {
		return nil, fmt.Errorf("romloader: read gzip member: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Asset{Name: name, Data: data}, nil
}
