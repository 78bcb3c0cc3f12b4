package phibia

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// ErrNotJPEG is returned by SavePhoto for data without a JPEG signature.
var ErrNotJPEG = errors.NewStd("photo is not a JPEG image")

// PhotoFilename names an uploaded sighting photo.
func PhotoFilename(at time.Time) string {
	return fmt.Sprintf("frog_%d.jpeg", at.UnixMilli())
}

// SavePhoto uploads a bullfrog sighting photo and returns the filename used.
func (c *Client) SavePhoto(ctx context.Context, jpeg []byte, at time.Time) (string, error) {
	const op = "save_photo"

	if len(jpeg) < 3 || jpeg[0] != 0xFF || jpeg[1] != 0xD8 || jpeg[2] != 0xFF {
		return "", errors.New(ErrNotJPEG).
			Component("phibia-api").
			Category(errors.CategoryValidation).
			Build()
	}

	filename := PhotoFilename(at)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", multipart.FileContentDisposition("image", filename))
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return "", formError(err)
	}
	if _, err := part.Write(jpeg); err != nil {
		return "", formError(err)
	}
	if err := w.Close(); err != nil {
		return "", formError(err)
	}

	rawURL := c.endpoint("save-photo")
	resp, err := c.http.Post(ctx, rawURL, w.FormDataContentType(), &buf)
	if err != nil {
		return "", transportError(ctx, op, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", serverError(op, resp)
	}

	c.log.Info("photo saved", logger.String("filename", filename), logger.Int("bytes", len(jpeg)))
	return filename, nil
}
