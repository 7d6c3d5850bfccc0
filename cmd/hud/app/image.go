package app

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
)

// writeImage encodes img to path through a temporary file in the same
// directory, so readers never observe a partially written frame. It returns
// the encoded size in bytes.
func writeImage(path string, format ImageFormat, img image.Image) (size int64, err error) {
	out, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(out.Name())
		}
	}()

	switch format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 90,
		})

	default:
		err = fmt.Errorf("unsupported image format '%s'", format)
	}
	if err != nil {
		return 0, fmt.Errorf("encoding %s: %w", format, err)
	}

	info, err := out.Stat()
	if err != nil {
		return 0, err
	}
	if err = out.Close(); err != nil {
		return 0, err
	}
	if err = os.Rename(out.Name(), path); err != nil {
		return 0, err
	}

	return info.Size(), nil
}
