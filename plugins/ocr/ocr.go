// Package ocr provides a processing plugin that extracts text from PDFs and
// scanned images by shelling out to pdftotext and tesseract, then pulls
// structured accounting hints out of the text.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/logging"
	"github.com/docbridge/docbridge/plugins/docstore"
)

// PluginName identifies this plugin.
const PluginName = "ocr"

var supportedFormats = []string{"pdf", "png", "jpg", "jpeg", "tiff", "bmp"}

// Plugin returns the OCR processing plugin.
func Plugin() *OCRPlugin {
	return &OCRPlugin{
		tesseractCmd: "tesseract",
		pdftotextCmd: "pdftotext",
		language:     "eng",
	}
}

// OCRPlugin extracts text from documents using external OCR tooling.
type OCRPlugin struct {
	tesseractCmd string
	pdftotextCmd string
	language     string

	store docstore.Store
}

// From docbridge.Plugin.
func (p *OCRPlugin) Name() string { return PluginName }

// From docbridge.Plugin.
func (p *OCRPlugin) Version() string { return "1.0.0" }

// From docbridge.DependentPlugin. Processing history is persisted, so the
// store has to come up first.
func (p *OCRPlugin) Deps() []string {
	return []string{docstore.PluginName}
}

// From docbridge.ConfigurablePlugin.
func (p *OCRPlugin) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"tesseractPath": {"type": "string"},
			"pdftotextPath": {"type": "string"},
			"language": {"type": "string"}
		}
	}`
}

// From docbridge.ConfigurablePlugin.
func (p *OCRPlugin) Configure(config map[string]any) error {
	if s, ok := config["tesseractPath"].(string); ok && s != "" {
		p.tesseractCmd = s
	}
	if s, ok := config["pdftotextPath"].(string); ok && s != "" {
		p.pdftotextCmd = s
	}
	if s, ok := config["language"].(string); ok && s != "" {
		p.language = s
	}
	return nil
}

// From docbridge.Plugin. Fails when neither extraction tool is on the path,
// matching the behavior of a missing OCR toolchain.
func (p *OCRPlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
	p.store = docstore.FromRegistry(app.Registry)

	_, terr := exec.LookPath(p.tesseractCmd)
	_, perr := exec.LookPath(p.pdftotextCmd)
	if terr != nil && perr != nil {
		return fmt.Errorf("ocr: no extraction tools available: %s and %s not found",
			p.tesseractCmd, p.pdftotextCmd)
	}
	if terr != nil {
		logging.Warnw(ctx, "ocr: tesseract not found, image OCR disabled", "cmd", p.tesseractCmd)
	}
	if perr != nil {
		logging.Warnw(ctx, "ocr: pdftotext not found, PDF extraction disabled", "cmd", p.pdftotextCmd)
	}
	return nil
}

// From docbridge.Plugin.
func (p *OCRPlugin) Cleanup(ctx context.Context) error { return nil }

// From docbridge.ProcessingPlugin.
func (p *OCRPlugin) SupportedFormats() []string {
	return supportedFormats
}

// From docbridge.ProcessingPlugin. A processing failure is returned as an
// error to the caller; it never changes the plugin's lifecycle status.
func (p *OCRPlugin) ProcessDocument(ctx context.Context, path string, meta docbridge.Metadata) (*docbridge.ProcessResult, error) {
	start := time.Now()
	result, err := p.process(ctx, path)
	p.record(ctx, meta, time.Since(start), err)
	return result, err
}

func (p *OCRPlugin) process(ctx context.Context, path string) (*docbridge.ProcessResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ocr: document not found: %s", path)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	var (
		text   string
		method string
		err    error
	)
	switch ext {
	case "pdf":
		text, err = p.extractPDF(ctx, path)
		method = "pdftotext"
	case "png", "jpg", "jpeg", "tiff", "bmp":
		text, err = p.extractImage(ctx, path)
		method = "tesseract"
	default:
		return nil, fmt.Errorf("ocr: unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, err
	}

	return &docbridge.ProcessResult{
		Plugin:    PluginName,
		Text:      text,
		Extracted: ExtractDocumentInfo(text),
		Details: map[string]any{
			"processingMethod": method,
			"textLength":       len(text),
		},
	}, nil
}

func (p *OCRPlugin) extractPDF(ctx context.Context, path string) (string, error) {
	// "-" sends the extracted text to stdout.
	out, err := p.run(ctx, p.pdftotextCmd, "-layout", path, "-")
	if err != nil {
		return "", fmt.Errorf("ocr: pdf extraction failed: %w", err)
	}
	return out, nil
}

func (p *OCRPlugin) extractImage(ctx context.Context, path string) (string, error) {
	out, err := p.run(ctx, p.tesseractCmd, path, "stdout", "-l", p.language)
	if err != nil {
		return "", fmt.Errorf("ocr: image OCR failed: %w", err)
	}
	return out, nil
}

func (p *OCRPlugin) run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// record persists a processing record when the document is tracked in the
// store. Documents processed outside the pipeline have no document ID.
func (p *OCRPlugin) record(ctx context.Context, meta docbridge.Metadata, took time.Duration, perr error) {
	if p.store == nil {
		return
	}
	docID, _ := meta["documentId"].(string)
	if docID == "" {
		return
	}
	rec := &docstore.ProcessingRecord{
		ID:         uuid.NewString(),
		DocumentID: docID,
		Plugin:     PluginName,
		Success:    perr == nil,
		Duration:   took,
		CreatedAt:  time.Now(),
	}
	if perr != nil {
		rec.Error = perr.Error()
	}
	if err := p.store.AddProcessingRecord(ctx, rec); err != nil {
		logging.Warnw(ctx, "ocr: failed to record processing history",
			"error", err, "document_id", docID)
	}
}
