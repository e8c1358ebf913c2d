package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MaxDocumentBytes caps uploaded documents before any parsing happens.
const MaxDocumentBytes = 5 << 20

type documentKind string

const (
	documentTXT  documentKind = ".txt"
	documentPDF  documentKind = ".pdf"
	documentDOCX documentKind = ".docx"
)

var documentContentTypes = map[documentKind]string{
	documentTXT:  "text/plain; charset=utf-8",
	documentPDF:  "application/pdf",
	documentDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func documentKindFromName(filename string) (documentKind, error) {
	switch kind := documentKind(strings.ToLower(filepath.Ext(filename))); kind {
	case documentTXT, documentPDF, documentDOCX:
		return kind, nil
	default:
		return "", ErrInvalidParams("unsupported file type, use .txt, .pdf or .docx")
	}
}

// ReadDocument returns the plain text of an uploaded .txt, .pdf or .docx file.
func ReadDocument(filename string, data []byte) (string, error) {
	kind, err := documentKindFromName(filename)
	if err != nil {
		return "", err
	}
	if len(data) > MaxDocumentBytes {
		return "", NewAppError(http.StatusBadRequest, CodePageTooLarge, "file is too large, the limit is 5 MB", nil)
	}

	var text string
	switch kind {
	case documentTXT:
		if !utf8.Valid(data) {
			return "", ErrInvalidParams("text file must be UTF-8 encoded")
		}
		text = string(data)
	case documentPDF:
		text, err = readPDF(data)
	case documentDOCX:
		text, err = readDOCX(data)
	}
	if err != nil {
		return "", NewAppError(http.StatusUnprocessableEntity, CodeInsufficientContent, "could not read the document", err)
	}
	return text, nil
}

func readPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// readDOCX collects the <w:t> runs of word/document.xml, one line per paragraph.
func readDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("docx has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(io.LimitReader(rc, MaxDocumentBytes*4))
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				var run string
				if err := decoder.DecodeElement(&run, &el); err == nil {
					sb.WriteString(run)
				}
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
