package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// openZip opens an in-memory OOXML package.
func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipFile returns the contents of the named entry, or nil if it is absent.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, nil
}

// textBlock is the text of one container element (a shape), split into paragraphs.
type textBlock struct {
	paragraphs []string
}

func (b textBlock) text() string {
	return strings.Join(b.paragraphs, "\n")
}

// collectParagraphs walks an OOXML part and returns its text grouped by block.
// A block starts at each element whose local name is blockName; when blockName
// is empty the whole part is one block. Inside a block, runs ("t") are
// concatenated, "tab" and "br" become tab and newline, and each "p" element
// closes a paragraph. Paragraph properties ("pPr") contribute no text, and
// nested paragraphs are merged into the outermost one.
func collectParagraphs(data []byte, blockName string) ([]textBlock, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		blocks     []textBlock
		current    *textBlock
		para       strings.Builder
		paraDepth  int
		propDepth  int
		blockDepth int
		inText     bool
	)
	if blockName == "" {
		blocks = append(blocks, textBlock{})
		current = &blocks[0]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case blockName:
				if blockDepth == 0 {
					blocks = append(blocks, textBlock{})
					current = &blocks[len(blocks)-1]
				}
				blockDepth++
			case "p":
				if paraDepth == 0 {
					para.Reset()
				}
				paraDepth++
			case "pPr":
				propDepth++
			case "t":
				inText = true
			case "tab":
				if paraDepth > 0 && propDepth == 0 {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if paraDepth > 0 && propDepth == 0 {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case blockName:
				blockDepth--
				if blockDepth == 0 {
					current = nil
				}
			case "p":
				paraDepth--
				if paraDepth == 0 && current != nil {
					current.paragraphs = append(current.paragraphs, para.String())
				}
			case "pPr":
				propDepth--
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && paraDepth > 0 {
				para.Write(t)
			}
		}
	}
	return blocks, nil
}
