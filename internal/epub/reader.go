// Package epub reads ePub 2/3 containers: package metadata and the chapter
// documents in spine order.
package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	mimetypeName  = "mimetype"
	containerPath = "META-INF/container.xml"
	epubMimetype  = "application/epub+zip"
)

// ErrInvalid is returned when the archive is not a readable ePub.
var ErrInvalid = errors.New("invalid epub")

// Book is the package metadata plus spine-ordered chapters.
type Book struct {
	Title    string
	Author   string
	Language string
	Chapters []Chapter
}

// Chapter is one XHTML document from the spine.
type Chapter struct {
	ID    string // manifest id
	Href  string // path inside the archive
	XHTML []byte
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles    []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creators  []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
		Languages []string `xml:"http://purl.org/dc/elements/1.1/ language"`
	} `xml:"metadata"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef  string `xml:"idref,attr"`
		Linear string `xml:"linear,attr"`
	} `xml:"spine>itemref"`
}

// Open reads the ePub at p.
func Open(p string) (*Book, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	defer zr.Close()
	return Read(&zr.Reader)
}

// Read parses an already opened archive.
func Read(zr *zip.Reader) (*Book, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	if f, ok := files[mimetypeName]; ok {
		data, err := readFile(f)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(string(data)) != epubMimetype {
			return nil, fmt.Errorf("%w: unexpected mimetype %q", ErrInvalid, data)
		}
	}

	rootPath, err := findRootfile(files)
	if err != nil {
		return nil, err
	}
	opfFile, ok := files[rootPath]
	if !ok {
		return nil, fmt.Errorf("%w: package document %s missing", ErrInvalid, rootPath)
	}
	data, err := readFile(opfFile)
	if err != nil {
		return nil, err
	}
	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse package document: %v", ErrInvalid, err)
	}

	book := &Book{
		Title:    first(pkg.Metadata.Titles),
		Author:   strings.Join(trimAll(pkg.Metadata.Creators), ", "),
		Language: first(pkg.Metadata.Languages),
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		if isDocument(item.MediaType) {
			hrefs[item.ID] = item.Href
		}
	}

	base := path.Dir(rootPath)
	for _, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok || ref.Linear == "no" {
			continue
		}
		full := path.Clean(path.Join(base, href))
		f, ok := files[full]
		if !ok {
			return nil, fmt.Errorf("%w: spine item %s not found at %s", ErrInvalid, ref.IDRef, full)
		}
		xhtml, err := readFile(f)
		if err != nil {
			return nil, err
		}
		book.Chapters = append(book.Chapters, Chapter{ID: ref.IDRef, Href: full, XHTML: xhtml})
	}

	if len(book.Chapters) == 0 {
		return nil, fmt.Errorf("%w: spine has no readable documents", ErrInvalid)
	}
	return book, nil
}

func findRootfile(files map[string]*zip.File) (string, error) {
	f, ok := files[containerPath]
	if !ok {
		return "", fmt.Errorf("%w: %s missing", ErrInvalid, containerPath)
	}
	data, err := readFile(f)
	if err != nil {
		return "", err
	}
	var c container
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("%w: failed to parse container: %v", ErrInvalid, err)
	}
	for _, rf := range c.Rootfiles {
		if rf.MediaType == "" || rf.MediaType == "application/oebps-package+xml" {
			return rf.FullPath, nil
		}
	}
	return "", fmt.Errorf("%w: no package rootfile", ErrInvalid)
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return data, nil
}

func isDocument(mediaType string) bool {
	switch mediaType {
	case "application/xhtml+xml", "text/html", "application/x-dtbook+xml":
		return true
	}
	return false
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func trimAll(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
