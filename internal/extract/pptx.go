package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

const (
	// pptxSlidePathPrefix is the path prefix for slide XML files inside a .pptx zip.
	pptxSlidePathPrefix = "ppt/slides/slide"

	pptxPresentation     = "ppt/presentation.xml"
	pptxPresentationRels = "ppt/_rels/presentation.xml.rels"
)

// presentation is the slide list of ppt/presentation.xml, in show order.
type presentation struct {
	SlideIDs []struct {
		RelID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type relationships struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// extractPPTX returns the text of every text-bearing shape, slide by slide in
// presentation order and shape by shape in document order. Shapes are
// separated by newlines, as are the paragraphs within a shape.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	slides, err := slideOrder(zr)
	if err != nil {
		return "", fmt.Errorf("extract PPTX: %w", err)
	}

	var texts []string
	for _, name := range slides {
		data, err := readZipFile(zr, name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		if data == nil {
			continue
		}
		shapes, err := collectParagraphs(data, "sp")
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %s: %w", name, err)
		}
		for _, shape := range shapes {
			if text := strings.TrimSpace(shape.text()); text != "" {
				texts = append(texts, text)
			}
		}
	}
	return strings.Join(texts, "\n"), nil
}

// slideOrder lists slide parts in the order of the presentation's sldIdLst.
// Packages without a usable slide list fall back to slide-number order.
func slideOrder(zr *zip.Reader) ([]string, error) {
	ordered, err := presentationSlides(zr)
	if err != nil {
		return nil, err
	}
	if len(ordered) > 0 {
		return ordered, nil
	}

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		num, ok := slideNumber(f.Name)
		if !ok {
			continue
		}
		slides = append(slides, slide{num: num, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	names := make([]string, len(slides))
	for i, s := range slides {
		names[i] = s.name
	}
	return names, nil
}

// presentationSlides resolves sldIdLst entries through the presentation
// relationships. It returns nil when either part is missing.
func presentationSlides(zr *zip.Reader) ([]string, error) {
	presData, err := readZipFile(zr, pptxPresentation)
	if err != nil || presData == nil {
		return nil, err
	}
	relsData, err := readZipFile(zr, pptxPresentationRels)
	if err != nil || relsData == nil {
		return nil, err
	}

	var pres presentation
	if err := xml.Unmarshal(presData, &pres); err != nil {
		return nil, fmt.Errorf("parse %s: %w", pptxPresentation, err)
	}
	var rels relationships
	if err := xml.Unmarshal(relsData, &rels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", pptxPresentationRels, err)
	}
	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		targets[r.ID] = r.Target
	}

	var names []string
	for _, id := range pres.SlideIDs {
		target, ok := targets[id.RelID]
		if !ok {
			continue
		}
		if strings.HasPrefix(target, "/") {
			names = append(names, strings.TrimPrefix(target, "/"))
		} else {
			names = append(names, path.Join(path.Dir(pptxPresentation), target))
		}
	}
	return names, nil
}

// slideNumber parses N from "ppt/slides/slideN.xml".
func slideNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, pptxSlidePathPrefix) || !strings.HasSuffix(name, ".xml") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, pptxSlidePathPrefix), ".xml"))
	if err != nil {
		return 0, false
	}
	return n, true
}
