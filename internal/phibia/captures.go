package phibia

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// ArgentinaTime is the zone detection timestamps are displayed in (UTC-3, no DST).
var ArgentinaTime = time.FixedZone("ART", -3*60*60)

// Detection is one of the user's saved recordings.
type Detection struct {
	AudioID    int    `json:"audio_id"`
	Path       string `json:"ruta"`
	RecordedAt string `json:"fecha_grabacion"`
	Species    struct {
		ID             int    `json:"id"`
		ScientificName string `json:"nombre_cientifico"`
		CommonName     string `json:"nombre_comun"`
		Description    string `json:"descripcion"`
		Image          string `json:"imagen"`
	} `json:"especie"`
	Location struct {
		ID          int    `json:"id"`
		Description string `json:"descripcion"`
	} `json:"ubicacion"`
}

// Time parses RecordedAt. Timestamps without a zone are taken as UTC.
func (d *Detection) Time() (time.Time, bool) {
	return parseBackendTime(d.RecordedAt)
}

// LocalDate formats the recording date as dd/mm/yyyy in Argentina time.
func (d *Detection) LocalDate() string {
	t, ok := d.Time()
	if !ok {
		return d.RecordedAt
	}
	return t.In(ArgentinaTime).Format("02/01/2006")
}

// LocalTime formats the recording time as HH:MM in Argentina time.
func (d *Detection) LocalTime() string {
	t, ok := d.Time()
	if !ok {
		return ""
	}
	return t.In(ArgentinaTime).Format("15:04")
}

var backendTimeLayouts = []string{
	time.RFC3339Nano,
	http.TimeFormat,
	time.RFC1123,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

func parseBackendTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range backendTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type capturesResponse struct {
	Detections []Detection `json:"detections"`
}

// Captures lists the logged in user's detections.
func (c *Client) Captures(ctx context.Context) ([]Detection, error) {
	var out capturesResponse
	if err := c.doJSON(ctx, "list_captures", http.MethodGet, c.endpoint("user", "captures"), nil, &out, true); err != nil {
		return nil, err
	}
	if out.Detections == nil {
		out.Detections = []Detection{}
	}
	return out.Detections, nil
}

// DeleteAudio removes a saved recording.
func (c *Client) DeleteAudio(ctx context.Context, audioID int) error {
	if err := validateID("audio", audioID); err != nil {
		return err
	}
	return c.doJSON(ctx, "delete_audio", http.MethodDelete, c.endpoint("audio", strconv.Itoa(audioID)), nil, nil, true)
}

// DownloadAudio streams a saved recording to w and returns the byte count
// and the response content type.
func (c *Client) DownloadAudio(ctx context.Context, audioID int, w io.Writer) (int64, string, error) {
	const op = "download_audio"
	if err := validateID("audio", audioID); err != nil {
		return 0, "", err
	}

	rawURL := c.endpoint("audio", strconv.Itoa(audioID))
	resp, err := c.http.Get(ctx, rawURL)
	if err != nil {
		return 0, "", transportError(ctx, op, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if isAuthStatus(resp.StatusCode) {
		return 0, "", notAuthenticated(op, resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, "", serverError(op, resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return n, "", transportError(ctx, op, rawURL, err)
		}
		return n, "", errors.New(err).
			Component("phibia-api").
			Category(errors.CategoryFileIO).
			Context("operation", op).
			Build()
	}

	c.log.Debug("audio downloaded", logger.Int("audio_id", audioID), logger.Int64("bytes", n))
	return n, resp.Header.Get("Content-Type"), nil
}

// AudioExtension guesses a file extension from a download content type.
func AudioExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "mpeg"):
		return ".mp3"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "webm"):
		return ".webm"
	case strings.Contains(contentType, "flac"):
		return ".flac"
	case strings.Contains(contentType, "mp4"):
		return ".m4a"
	default:
		return ".bin"
	}
}
