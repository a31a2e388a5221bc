package rag

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
)

// Format is the tagged variant over the supported upload types. Dispatch to
// the format-specific extractor goes through the tag, never through runtime
// sniffing of a caller-declared type.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatMD   Format = "md"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// FormatForName maps a file name to its Format, reporting false for
// anything outside the allow-list.
func FormatForName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return FormatTXT, true
	case ".md":
		return FormatMD, true
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDOCX, true
	}
	return "", false
}

// ExtractText pulls plain text out of the raw upload. Corrupt or
// unreadable content surfaces as an extraction error; the caller decides
// what an empty result means.
func ExtractText(format Format, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.Errorf(apperr.KindValidation, "empty file")
	}

	switch format {
	case FormatTXT, FormatMD:
		if !isProbablyText(data) {
			return "", apperr.Errorf(apperr.KindExtraction, "file is not plain text")
		}
		return collapseWhitespace(string(data)), nil
	case FormatPDF:
		if !isPDF(data) {
			return "", apperr.Errorf(apperr.KindExtraction, "file claims pdf but missing %%PDF header")
		}
		return extractPDF(data)
	case FormatDOCX:
		if !isZip(data) {
			return "", apperr.Errorf(apperr.KindExtraction, "file claims docx but is not a valid zip container")
		}
		return extractDOCX(data)
	}
	return "", apperr.Errorf(apperr.KindValidation, "unsupported format %q", format)
}

// ------------------------
// Sniff helpers
// ------------------------

func isPDF(b []byte) bool {
	// PDF starts with "%PDF-"
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func isZip(b []byte) bool {
	// ZIP local file header: PK\x03\x04
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func isProbablyText(b []byte) bool {
	sample := b
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c <= 0x7E) || c >= 0x80 {
			good++
		}
	}
	return float64(good)/float64(len(sample)) > 0.9
}

// ------------------------
// Extractors
// ------------------------

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperr.Errorf(apperr.KindExtraction, "pdf reader: %v", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", apperr.Errorf(apperr.KindExtraction, "pdf plaintext: %v", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", apperr.Errorf(apperr.KindExtraction, "pdf read: %v", err)
	}
	return collapseWhitespace(string(b)), nil
}

func extractDOCX(zipBytes []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return "", apperr.Errorf(apperr.KindExtraction, "docx zip: %v", err)
	}
	var f *zip.File
	for _, zf := range zr.File {
		if zf.Name == "word/document.xml" {
			f = zf
			break
		}
	}
	if f == nil {
		return "", apperr.Errorf(apperr.KindExtraction, "docx missing word/document.xml")
	}
	rc, err := f.Open()
	if err != nil {
		return "", apperr.Errorf(apperr.KindExtraction, "docx open document.xml: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()

	s := collapseWhitespace(extractTextElements(b))
	if s == "" {
		return "", apperr.Errorf(apperr.KindExtraction, "no text extracted from docx")
	}
	return s, nil
}

// extractTextElements gathers the character data of every <w:t> element.
func extractTextElements(xmlBytes []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "t" {
			continue
		}
		var v string
		_ = dec.DecodeElement(&v, &se)
		if v != "" {
			out.WriteString(v)
			out.WriteString(" ")
		}
	}
	return out.String()
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}
