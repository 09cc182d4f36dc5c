package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/disintegration/imaging"
)

const thumbnailSide = 320

// imaging decodes these; svg and webp are stored without a thumbnail.
var thumbnailExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {},
}

type Thumbnailer struct {
	objects ObjectStore
	side    int
}

func NewThumbnailer(objects ObjectStore) *Thumbnailer {
	return &Thumbnailer{objects: objects, side: thumbnailSide}
}

func (t *Thumbnailer) Supports(extension string) bool {
	_, ok := thumbnailExtensions[strings.ToLower(extension)]
	return ok
}

// Make reads objectKey back from the store and writes a JPEG thumbnail next
// to it, returning the thumbnail key.
func (t *Thumbnailer) Make(ctx context.Context, objectKey string) (string, error) {
	obj, err := t.objects.Get(ctx, objectKey)
	if err != nil {
		return "", err
	}
	defer obj.Close()

	img, err := imaging.Decode(obj, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Thumbnail(img, t.side, t.side, imaging.Lanczos)
	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, thumb, imaging.JPEG); err != nil {
		return "", fmt.Errorf("encode thumb: %w", err)
	}

	thumbKey := thumbnailKey(objectKey)
	reader := bytes.NewReader(buf.Bytes())
	if _, err := t.objects.Put(ctx, thumbKey, reader, int64(reader.Len()), "image/jpeg"); err != nil {
		return "", fmt.Errorf("upload thumb: %w", err)
	}
	return thumbKey, nil
}

func thumbnailKey(objectKey string) string {
	return strings.TrimSuffix(objectKey, path.Ext(objectKey)) + "_thumb.jpg"
}
