// Package template parses the two-part reminder templates (subject
// header plus body) and performs {{key}} substitution.
package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrTemplateMissing means no template file exists for the stage.
	ErrTemplateMissing = errors.New("template file not found")

	// ErrTemplateMalformed means the template text does not start with
	// a single "Subject:" line followed by one blank line.
	ErrTemplateMalformed = errors.New("malformed template")
)

// Renderer loads per-stage template files from a directory and renders
// them with invoice data. Rendering is deterministic and has no side
// effects beyond reading the template file.
type Renderer struct {
	dir    string
	logger *zap.Logger
}

// NewRenderer creates a renderer rooted at dir.
func NewRenderer(dir string, logger *zap.Logger) *Renderer {
	return &Renderer{dir: dir, logger: logger}
}

// PathFor returns the template file path for a stage, e.g.
// stage_07.txt for stage 7.
func (r *Renderer) PathFor(stage int) string {
	return filepath.Join(r.dir, fmt.Sprintf("stage_%02d.txt", stage))
}

// RenderStage loads the stage template and substitutes vars into both
// subject and body.
func (r *Renderer) RenderStage(stage int, vars map[string]string) (subject, body string, err error) {
	path := r.PathFor(stage)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("%w: %s", ErrTemplateMissing, path)
		}
		return "", "", fmt.Errorf("failed to read template %s: %w", path, err)
	}

	subjectTpl, bodyTpl, err := Parse(string(raw))
	if err != nil {
		return "", "", fmt.Errorf("template %s: %w", path, err)
	}

	r.logger.Debug("Rendering template",
		zap.Int("stage", stage),
		zap.String("path", path))

	return Substitute(subjectTpl, vars), Substitute(bodyTpl, vars), nil
}

// Parse splits raw template text into subject and body templates. The
// text must begin with a single "Subject: <text>" header line followed
// by exactly one blank line; anything else is a hard parse error,
// never a partial render.
func Parse(raw string) (subject, body string, err error) {
	sep := strings.Index(raw, "\n\n")
	if sep < 0 {
		return "", "", fmt.Errorf("%w: missing blank line after subject", ErrTemplateMalformed)
	}

	header := raw[:sep]
	if strings.Contains(header, "\n") {
		return "", "", fmt.Errorf("%w: subject must be a single line", ErrTemplateMalformed)
	}
	if !strings.HasPrefix(header, "Subject:") {
		return "", "", fmt.Errorf("%w: first line must start with %q", ErrTemplateMalformed, "Subject:")
	}

	subject = strings.TrimSpace(strings.TrimPrefix(header, "Subject:"))
	body = raw[sep+2:]
	return subject, body, nil
}

// Substitute replaces every {{key}} placeholder with its mapped value.
// Placeholders with no matching key stay verbatim so an unknown
// variable is visibly wrong instead of silently blank. Values must be
// pre-formatted strings; no numeric formatting happens here.
func Substitute(text string, vars map[string]string) string {
	for key, value := range vars {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}
