// Package pdfdoc opens local PDF files and reports their page count.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNotPDF is returned when a file does not start with the PDF signature.
var ErrNotPDF = errors.New("pdfdoc: missing %PDF- signature")

// Backend names a parser implementation.
type Backend string

const (
	BackendLedongthuc Backend = "ledongthuc"
	BackendPDFCPU     Backend = "pdfcpu"
)

// Parser reads the page count of a PDF on disk.
type Parser interface {
	PageCount(path string) (int, error)
}

// New returns the parser for backend. Empty selects BackendLedongthuc.
func New(backend Backend) (Parser, error) {
	switch backend {
	case "", BackendLedongthuc:
		return Ledongthuc{}, nil
	case BackendPDFCPU:
		return PDFCPU{}, nil
	}
	return nil, fmt.Errorf("pdfdoc: unknown backend %q", backend)
}

// Sniff checks the magic bytes at the start of the file.
func Sniff(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("pdfdoc: %w", err)
	}
	defer f.Close()

	head := make([]byte, 5)
	if _, err := io.ReadFull(f, head); err != nil {
		return ErrNotPDF
	}
	if !bytes.Equal(head, []byte("%PDF-")) {
		return ErrNotPDF
	}
	return nil
}

// Ledongthuc uses the pure Go github.com/ledongthuc/pdf reader.
type Ledongthuc struct{}

// PageCount implements Parser. The reader panics on some malformed
// documents; those panics come back as errors.
func (Ledongthuc) PageCount(path string) (n int, err error) {
	if err := Sniff(path); err != nil {
		return 0, err
	}

	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdfdoc: malformed document: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("pdfdoc: open %s: %w", path, err)
	}
	defer f.Close()

	return r.NumPage(), nil
}

var disableConfigDir sync.Once

// PDFCPU uses github.com/pdfcpu/pdfcpu with relaxed validation.
type PDFCPU struct{}

// PageCount implements Parser.
func (PDFCPU) PageCount(path string) (n int, err error) {
	if err := Sniff(path); err != nil {
		return 0, err
	}
	// pdfcpu otherwise writes a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)

	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdfdoc: malformed document: %v", r)
		}
	}()

	n, err = api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdfdoc: pdfcpu %s: %w", path, err)
	}
	return n, nil
}
