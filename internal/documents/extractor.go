// Package documents turns agenda files into text and watches an inbox
// directory for new ones.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "github.com/alan/citascrit-cli/internal/errors"
)

var pdfMagic = []byte("%PDF-")

// MaxDocumentSize bounds the files handed to the extractor. Clinic agendas
// are a few pages long.
const MaxDocumentSize = 32 << 20

// Extractor returns the plain text of a document.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// FileExtractor reads .txt files directly and converts .pdf files with
// pdftotext from poppler-utils.
type FileExtractor struct {
	pdftotext string
}

// NewFileExtractor creates an extractor. An empty binary means "pdftotext"
// on PATH.
func NewFileExtractor(pdftotextBinary string) *FileExtractor {
	if pdftotextBinary == "" {
		pdftotextBinary = "pdftotext"
	}
	return &FileExtractor{pdftotext: pdftotextBinary}
}

// Available reports whether the pdftotext binary can be found.
func (e *FileExtractor) Available() bool {
	_, err := exec.LookPath(e.pdftotext)
	return err == nil
}

// Supported reports whether path has an extension the extractor handles.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt":
		return true
	}
	return false
}

func (e *FileExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if !Supported(path) {
		return "", apperrors.New(apperrors.ErrNotPDF.Code, fmt.Sprintf("%s is not a PDF", filepath.Base(path)))
	}
	if err := checkDocument(path); err != nil {
		return "", err
	}

	if strings.ToLower(filepath.Ext(path)) == ".txt" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrExtractionFailed.Code, "failed to read "+path)
		}
		return string(data), nil
	}

	if err := checkPDFHeader(path); err != nil {
		return "", err
	}
	if !e.Available() {
		return "", apperrors.New(apperrors.ErrExtractionFailed.Code,
			fmt.Sprintf("%s not found, install poppler-utils or set documents.pdftotext_path", e.pdftotext))
	}
	return e.extractPDF(ctx, path)
}

// extractPDF runs pdftotext without -layout: the agenda parser expects one
// table cell per line rather than the visual columns.
func (e *FileExtractor) extractPDF(ctx context.Context, path string) (string, error) {
	args := []string{
		"-enc", "UTF-8",
		"-nopgbrk", // No page breaks
		path,
		"-", // Write to stdout
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.pdftotext, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", apperrors.Wrap(
			fmt.Errorf("%w (output: %s)", err, strings.TrimSpace(stderr.String())),
			apperrors.ErrExtractionFailed.Code,
			"pdftotext failed",
		)
	}
	return stdout.String(), nil
}

func checkDocument(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrExtractionFailed.Code, "failed to read "+path)
	}
	if !info.Mode().IsRegular() {
		return apperrors.New(apperrors.ErrNotPDF.Code, fmt.Sprintf("%s is not a file", filepath.Base(path)))
	}
	if info.Size() > MaxDocumentSize {
		return apperrors.New(apperrors.ErrExtractionFailed.Code,
			fmt.Sprintf("%s is too large (%d bytes)", filepath.Base(path), info.Size()))
	}
	return nil
}

func checkPDFHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrExtractionFailed.Code, "failed to open "+path)
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return apperrors.New(apperrors.ErrNotPDF.Code, fmt.Sprintf("%s is not a PDF", filepath.Base(path)))
	}
	return nil
}
