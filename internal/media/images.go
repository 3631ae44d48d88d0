package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"gadgetshop/internal/domain"
)

const (
	MaxImageBytes = 3 << 20
	MinImageSide  = 400
	MaxImageSide  = 800
	// uploads above this are refused before their pixels are decoded
	MaxDecodeSide = 10000
)

// Store saves uploaded product images under Dir.
type Store struct {
	Dir string

	encode func(io.Writer, image.Image) error
}

func NewStore(dir string) *Store { return &Store{Dir: dir, encode: encodeJPEG} }

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
}

// SaveProductImage validates an uploaded image, downscales it to fit
// MaxImageSide and stores it as JPEG. It returns the path relative to Dir.
func (s *Store) SaveProductImage(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxImageBytes {
		return "", domain.Invalid("image", "must be at most 3 MiB")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", domain.Invalid("image", "unsupported image format, use PNG or JPEG")
	}
	if cfg.Width < MinImageSide || cfg.Height < MinImageSide {
		return "", domain.Invalid("image", fmt.Sprintf("must be at least %dx%d", MinImageSide, MinImageSide))
	}
	if cfg.Width > MaxDecodeSide || cfg.Height > MaxDecodeSide {
		return "", domain.Invalid("image", fmt.Sprintf("must be at most %dx%d", MaxDecodeSide, MaxDecodeSide))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", domain.Invalid("image", "unsupported image format, use PNG or JPEG")
	}
	if b := img.Bounds(); b.Dx() > MaxImageSide || b.Dy() > MaxImageSide {
		img = resize.Thumbnail(MaxImageSide, MaxImageSide, img, resize.Lanczos3)
	}

	rel := filepath.Join("products", uuid.NewString()+".jpg")
	full := filepath.Join(s.Dir, rel)
	if err := s.write(full, img); err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// write encodes img next to full and renames it into place, so a failed
// upload never leaves a partial file behind.
func (s *Store) write(full string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	encode := s.encode
	if encode == nil {
		encode = encodeJPEG
	}
	if err = encode(tmp, img); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode image: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}
