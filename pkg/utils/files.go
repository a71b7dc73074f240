package utils

import (
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/bodgit/sevenzip"
)

// LoadFile loads the given file and performs decompression if necessary.
// Plain .nes files are returned as is; .zip, .7z and .gz archives are
// unpacked and the first entry is returned.
func LoadFile(filename string) ([]byte, error) {
	// open the file
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// read the file into a byte slice
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	// try to assert the compression type from the file extension
	var decoder io.Reader
	switch filepath.Ext(filename) {
	case ".gz":
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		decoder, err = gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
	case ".zip":
		zipReader, err := zip.NewReader(f, int64(len(data)))
		if err != nil {
			return nil, err
		}

		// read the first file in the zip file
		decoder, err = zipReader.File[0].Open()
		if err != nil {
			return nil, err
		}
	case ".7z":
		r, err := sevenzip.NewReader(f, int64(len(data)))
		if err != nil {
			return nil, err
		}

		// read the first file in the archive
		decoder, err = r.File[0].Open()
		if err != nil {
			return nil, err
		}
	default:
		// return the data as is
		return data, nil
	}

	// read the decompressed data into a byte slice
	return io.ReadAll(decoder)
}
