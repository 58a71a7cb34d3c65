package filemgr

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"pilgrimsafe/utils"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Saved names the stored picture and its thumbnail.
type Saved struct {
	Name      string
	Photo     string
	Thumbnail string
	Width     int
	Height    int
}

// Store writes uploaded pictures under Root, one folder per entity.
type Store struct {
	Root       string
	MaxBytes   int64
	MaxWidth   int
	ThumbWidth int
}

// readLimited reads r, failing with ErrFileTooLarge past max bytes.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(buf)) > max {
		return nil, ErrFileTooLarge
	}
	return buf, nil
}

func sniff(buf []byte) (string, error) {
	mimeType := http.DetectContentType(buf)
	if !utils.SupportedImageTypes[mimeType] {
		return "", fmt.Errorf("%w: %s", ErrInvalidMIME, mimeType)
	}
	return mimeType, nil
}

// Save validates r as an image, scales it down to MaxWidth and writes it
// with a thumbnail. Both are re-encoded as JPEG, which drops EXIF data.
func (s Store) Save(r io.Reader, entity EntityType) (Saved, error) {
	if !entities[entity] {
		return Saved{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	buf, err := readLimited(r, s.MaxBytes)
	if err != nil {
		return Saved{}, err
	}
	if _, err := sniff(buf); err != nil {
		return Saved{}, err
	}
	img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
	if err != nil {
		return Saved{}, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	if s.MaxWidth > 0 && img.Bounds().Dx() > s.MaxWidth {
		img = imaging.Resize(img, s.MaxWidth, 0, imaging.Lanczos)
	}

	name := utils.GetUUID() + ".jpg"
	photo := filepath.Join(ResolvePath(s.Root, entity, PicPhoto), name)
	if err := writeJPEG(photo, img, 90); err != nil {
		return Saved{}, err
	}

	thumbWidth := s.ThumbWidth
	if thumbWidth <= 0 {
		thumbWidth = 300
	}
	thumbImg := img
	if img.Bounds().Dx() > thumbWidth {
		thumbImg = imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	}
	thumb := filepath.Join(ResolvePath(s.Root, entity, PicThumb), name)
	if err := writeJPEG(thumb, thumbImg, 85); err != nil {
		_ = os.Remove(photo)
		return Saved{}, err
	}

	b := img.Bounds()
	return Saved{Name: name, Photo: photo, Thumbnail: thumb, Width: b.Dx(), Height: b.Dy()}, nil
}

func writeJPEG(path string, img image.Image, quality int) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := imaging.Encode(out, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return out.Close()
}
