package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
)

const wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

var errNoDocumentPart = errors.New("docx has no word/document.xml")

type docxParagraph struct {
	style string
	text  string
}

// ExtractDOCX reads the main document part of a WordprocessingML package.
// Paragraph styles named Heading1..Heading6 or Title become headings.
func ExtractDOCX(ctx context.Context, path string) (*Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer zr.Close()

	var documentPart, corePart *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			documentPart = f
		case "docProps/core.xml":
			corePart = f
		}
	}
	if documentPart == nil {
		return nil, errNoDocumentPart
	}

	rc, err := documentPart.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document part: %w", err)
	}
	paragraphs, err := readParagraphs(ctx, rc)
	rc.Close()
	if err != nil {
		return nil, err
	}

	res := &Result{Format: FormatDOCX}
	if corePart != nil {
		res.Title, res.Author = readCoreProperties(corePart)
	}

	var hb, tb strings.Builder
	for _, p := range paragraphs {
		text := strings.TrimSpace(p.text)
		if text == "" {
			continue
		}
		if level := headingLevel(p.style); level > 0 {
			fmt.Fprintf(&hb, "<h%d>%s</h%d>\n", level, html.EscapeString(text), level)
		} else {
			fmt.Fprintf(&hb, "<p>%s</p>\n", html.EscapeString(text))
		}
		if tb.Len() > 0 {
			tb.WriteString("\n\n")
		}
		tb.WriteString(text)
	}
	res.HTML = hb.String()
	res.Text = tb.String()
	return res, nil
}

// readParagraphs streams w:p elements, collecting w:t text, tabs and breaks.
func readParagraphs(ctx context.Context, r io.Reader) ([]docxParagraph, error) {
	dec := xml.NewDecoder(r)
	var (
		out     []docxParagraph
		current *docxParagraph
		text    strings.Builder
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document part: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "p":
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				current = &docxParagraph{}
				text.Reset()
			case "pStyle":
				if current != nil {
					current.style = attr(t, "val")
				}
			case "t":
				inText = true
			case "tab":
				text.WriteByte('\t')
			case "br", "cr":
				text.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if current != nil {
					current.text = text.String()
					out = append(out, *current)
					current = nil
				}
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		}
	}
	return out, nil
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func headingLevel(style string) int {
	s := strings.ToLower(style)
	if s == "title" {
		return 1
	}
	if strings.HasPrefix(s, "heading") && len(s) == len("heading")+1 {
		if d := s[len(s)-1]; d >= '1' && d <= '6' {
			return int(d - '0')
		}
	}
	return 0
}

type coreProperties struct {
	Title   string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator string `xml:"http://purl.org/dc/elements/1.1/ creator"`
}

func readCoreProperties(f *zip.File) (title, author string) {
	rc, err := f.Open()
	if err != nil {
		return "", ""
	}
	defer rc.Close()
	var props coreProperties
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return "", ""
	}
	return strings.TrimSpace(props.Title), strings.TrimSpace(props.Creator)
}
