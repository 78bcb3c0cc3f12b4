package notification

import (
	"strings"
	"text/template"

	"github.com/phibia-app/phibia-go/internal/presentation"
	"github.com/phibia-app/phibia-go/internal/session"
)

// DefaultTitle is the title of detection notifications.
const DefaultTitle = "phibIA"

// DefaultTemplate renders "Especie detectada: Boana pulchella (87.5%)".
const DefaultTemplate = `Especie detectada: {{.ScientificName}}{{if .Confidence}} ({{.Confidence}}){{end}}` +
	`{{if .CommonName}}{{"\n"}}{{.CommonName}}{{end}}` +
	`{{if .Location}}{{"\n"}}Ubicación: {{.Location}}{{end}}`

// TemplateData is what message templates can reference.
type TemplateData struct {
	ID             string
	ScientificName string
	CommonName     string
	Confidence     string // "87.5%", empty when unknown
	Location       string // "lat, lng", empty when no position was sent
	Source         string
	Filename       string
	Time           string
}

// NewTemplateData flattens a session result for templates.
func NewTemplateData(res *session.Result) TemplateData {
	data := TemplateData{
		ID:             res.ID,
		ScientificName: res.DisplayName(),
		CommonName:     res.CommonName,
		Source:         string(res.Source),
		Filename:       res.Filename,
	}
	if res.Confidence != nil {
		data.Confidence = presentation.FormatConfidence(*res.Confidence)
	}
	if res.Location != nil {
		data.Location = res.Location.String()
	}
	if !res.StartedAt.IsZero() {
		data.Time = res.StartedAt.Format("02/01/2006 15:04")
	}
	return data
}

// ParseTemplate compiles text, or DefaultTemplate when text is blank.
func ParseTemplate(text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	return template.New("detection").Option("missingkey=error").Parse(text)
}

// RenderDetection executes tmpl for res.
func RenderDetection(tmpl *template.Template, res *session.Result) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, NewTemplateData(res)); err != nil {
		return "", err
	}
	return sb.String(), nil
}
