// Package epubtest writes minimal ePub files for tests.
package epubtest

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Chapter is a single spine document; Body is placed inside <body>.
type Chapter struct {
	ID   string
	Body string
}

// Write creates an ePub under t.TempDir() and returns its path.
func Write(t *testing.T, title, author string, chapters ...Chapter) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	// mimetype must be first and stored uncompressed
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("create mimetype: %v", err)
	}
	w.Write([]byte("application/epub+zip"))

	add(t, zw, "META-INF/container.xml", `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine strings.Builder
	for _, ch := range chapters {
		fmt.Fprintf(&manifest, "    <item id=\"%s\" href=\"text/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n", ch.ID, ch.ID)
		fmt.Fprintf(&spine, "    <itemref idref=\"%s\"/>\n", ch.ID)
		add(t, zw, "OEBPS/text/"+ch.ID+".xhtml", `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>`+ch.ID+`</title></head>
<body>
`+ch.Body+`
</body>
</html>
`)
	}

	add(t, zw, "OEBPS/content.opf", `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="pub-id">urn:uuid:test</dc:identifier>
    <dc:title>`+title+`</dc:title>
    <dc:creator>`+author+`</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
`+manifest.String()+`  </manifest>
  <spine>
`+spine.String()+`  </spine>
</package>`)

	if err := zw.Close(); err != nil {
		t.Fatalf("close epub: %v", err)
	}
	return p
}

func add(t *testing.T, zw *zip.Writer, name, content string) {
	t.Helper()
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
