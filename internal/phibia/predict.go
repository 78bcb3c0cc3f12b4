package phibia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/myaudio"
)

// audioField is the multipart field carrying the recording.
const audioField = "audio"

// SpeciesLabel is a parsed model label such as "3-Boana_pulchella".
type SpeciesLabel struct {
	ID   int    // 1-based class index, 0 when the label has no prefix
	Name string // scientific name as the model emits it
}

// DisplayName returns the name with underscores replaced by spaces.
func (l SpeciesLabel) DisplayName() string {
	return strings.ReplaceAll(l.Name, "_", " ")
}

// ParseSpeciesLabel splits "<id>-<name>". A label without a numeric prefix
// keeps the whole string as the name with ID 0.
func ParseSpeciesLabel(label string) SpeciesLabel {
	label = strings.TrimSpace(label)
	prefix, rest, found := strings.Cut(label, "-")
	if !found {
		return SpeciesLabel{Name: label}
	}
	id, err := strconv.Atoi(prefix)
	if err != nil || id < 0 || rest == "" {
		return SpeciesLabel{Name: label}
	}
	return SpeciesLabel{ID: id, Name: rest}
}

// SpeciesDetails is optional catalog data returned with a prediction.
type SpeciesDetails struct {
	CommonName  string `json:"nombre_comun"`
	Description string `json:"descripcion"`
}

// Prediction is a successful /predict response.
type Prediction struct {
	Label      string          // raw label, e.g. "3-Boana_pulchella"
	Species    SpeciesLabel    // parsed label
	Confidence *float64        // percent 0-100, nil when the backend omits it
	Details    *SpeciesDetails // nil when the backend omits it
}

type predictResponse struct {
	Prediction string          `json:"prediccion"`
	Confidence *float64        `json:"confianza"`
	Details    *SpeciesDetails `json:"especie_info"`
}

// Predict uploads blob to /predict. loc may be nil, in which case no
// coordinate fields are sent.
func (c *Client) Predict(ctx context.Context, blob myaudio.AudioBlob, loc *geolocation.Location) (*Prediction, error) {
	const op = "predict"

	if blob.IsEmpty() {
		return nil, errors.New(myaudio.ErrNoAudioCaptured).
			Component("phibia-api").
			Category(errors.CategoryValidation).
			Context("operation", op).
			Build()
	}

	body, contentType, err := c.predictForm(blob, loc)
	if err != nil {
		return nil, err
	}

	if c.predictTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.predictTimeout)
		defer cancel()
	}

	rawURL := c.endpoint("predict")
	start := time.Now()
	c.log.Info("submitting recording",
		logger.String("filename", blob.Filename),
		logger.Int("bytes", blob.Size()),
		logger.Bool("with_location", loc != nil))

	resp, err := c.http.Post(ctx, rawURL, contentType, body)
	if err != nil {
		return nil, transportError(ctx, op, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := serverError(op, resp)
		c.log.Warn("prediction rejected",
			logger.Int("status", resp.StatusCode),
			logger.Error(serr))
		return nil, serr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return nil, transportError(ctx, op, rawURL, err)
	}

	var payload predictResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, decodeError(op, err)
	}
	if strings.TrimSpace(payload.Prediction) == "" {
		return nil, decodeError(op, fmt.Errorf("response has no prediccion"))
	}

	prediction := &Prediction{
		Label:      payload.Prediction,
		Species:    ParseSpeciesLabel(payload.Prediction),
		Confidence: payload.Confidence,
		Details:    payload.Details,
	}

	c.log.Info("prediction received",
		logger.String("label", prediction.Label),
		logger.Duration("elapsed", time.Since(start)))
	return prediction, nil
}

// predictForm builds the multipart body for /predict.
func (c *Client) predictForm(blob myaudio.AudioBlob, loc *geolocation.Location) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := blob.Filename
	if filename == "" {
		filename = myaudio.RecordingFilename
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", multipart.FileContentDisposition(audioField, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", formError(err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", formError(err)
	}

	if loc != nil {
		if err := w.WriteField(c.latField, geolocation.FormatCoordinate(loc.Latitude)); err != nil {
			return nil, "", formError(err)
		}
		if err := w.WriteField(c.lngField, geolocation.FormatCoordinate(loc.Longitude)); err != nil {
			return nil, "", formError(err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", formError(err)
	}
	return &buf, w.FormDataContentType(), nil
}

func formError(err error) error {
	return errors.New(fmt.Errorf("failed to build upload form: %w", err)).
		Component("phibia-api").
		Category(errors.CategoryGeneric).
		Build()
}
