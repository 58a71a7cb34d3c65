package filemgr

import (
	"errors"
	"path"
	"path/filepath"
)

type EntityType string
type PictureType string

const (
	EntityPlace EntityType = "place"
	EntityEvent EntityType = "event"

	PicPhoto PictureType = "photo"
	PicThumb PictureType = "thumb"
)

var entities = map[EntityType]bool{
	EntityPlace: true,
	EntityEvent: true,
}

var (
	ErrUnknownEntity = errors.New("unknown entity type")
	ErrInvalidMIME   = errors.New("invalid MIME type")
	ErrFileTooLarge  = errors.New("file size exceeds limit")
	ErrNotAnImage    = errors.New("file is not a decodable image")
)

// ResolvePath is where pictures of one entity and type live on disk.
func ResolvePath(root string, entity EntityType, pic PictureType) string {
	return filepath.Join(root, string(entity), string(pic))
}

// ResolveURL is the public URL of a stored picture.
func ResolveURL(prefix string, entity EntityType, pic PictureType, name string) string {
	return path.Join(prefix, string(entity), string(pic), name)
}
