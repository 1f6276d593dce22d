// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package libreoffice

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/pdiddy/office2img/internal/backend"
)

// emuPerPoint converts OOXML English Metric Units to points.
const emuPerPoint = 12700.0

var errNotOOXML = errors.New("not an Office Open XML package")

// ooxmlPackage is an opened .docx or .pptx zip.
type ooxmlPackage struct {
	zr *zip.ReadCloser
}

func openPackage(p string) (*ooxmlPackage, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%s: %w", p, errNotOOXML)
		}
		return nil, err
	}
	return &ooxmlPackage{zr: zr}, nil
}

func (pk *ooxmlPackage) Close() error { return pk.zr.Close() }

func (pk *ooxmlPackage) decode(name string, v any) error {
	f, err := pk.zr.Open(name)
	if err != nil {
		return fmt.Errorf("opening part %s: %w", name, err)
	}
	defer f.Close()
	if err := xml.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("parsing part %s: %w", name, err)
	}
	return nil
}

// docxPageCount reads the page statistic Word stores in docProps/app.xml.
func docxPageCount(p string) (int, error) {
	pk, err := openPackage(p)
	if err != nil {
		return 0, err
	}
	defer pk.Close()

	var props struct {
		Pages *int `xml:"Pages"`
	}
	if err := pk.decode("docProps/app.xml", &props); err != nil {
		return 0, err
	}
	if props.Pages == nil {
		return 0, fmt.Errorf("docProps/app.xml has no page statistic")
	}
	return *props.Pages, nil
}

// deckInfo is what a presentation package says about itself.
type deckInfo struct {
	width, height float64 // points
	slideParts    []string
}

func readDeckInfo(pk *ooxmlPackage) (deckInfo, error) {
	var pres struct {
		Size struct {
			CX int64 `xml:"cx,attr"`
			CY int64 `xml:"cy,attr"`
		} `xml:"sldSz"`
		Slides []struct {
			RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sldIdLst>sldId"`
	}
	if err := pk.decode("ppt/presentation.xml", &pres); err != nil {
		return deckInfo{}, err
	}

	var rels struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := pk.decode("ppt/_rels/presentation.xml.rels", &rels); err != nil {
		return deckInfo{}, err
	}
	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		targets[r.ID] = r.Target
	}

	info := deckInfo{
		width:  float64(pres.Size.CX) / emuPerPoint,
		height: float64(pres.Size.CY) / emuPerPoint,
	}
	for _, s := range pres.Slides {
		target, ok := targets[s.RID]
		if !ok {
			return deckInfo{}, fmt.Errorf("slide relationship %s not found", s.RID)
		}
		if !strings.HasPrefix(target, "/") {
			target = path.Join("ppt", target)
		}
		info.slideParts = append(info.slideParts, strings.TrimPrefix(target, "/"))
	}
	return info, nil
}

// xmlShape is a p:sp element; TxBody is nil for shapes without a text body.
type xmlShape struct {
	TxBody *struct {
		Paragraphs []struct {
			Items []struct {
				XMLName xml.Name
				Text    string `xml:"t"`
			} `xml:",any"`
		} `xml:"p"`
	} `xml:"txBody"`
}

func (s xmlShape) text() string {
	paras := make([]string, 0, len(s.TxBody.Paragraphs))
	for _, p := range s.TxBody.Paragraphs {
		var b strings.Builder
		for _, it := range p.Items {
			switch it.XMLName.Local {
			case "r", "fld":
				b.WriteString(it.Text)
			case "br":
				b.WriteString("\n")
			}
		}
		paras = append(paras, b.String())
	}
	return strings.Join(paras, "\n")
}

// readSlideShapes returns the top-level shapes of one slide part in
// z-order. Text shapes report their body; pictures, connectors, graphic
// frames and groups report no text capability.
func readSlideShapes(pk *ooxmlPackage, part string) ([]backend.Shape, error) {
	f, err := pk.zr.Open(part)
	if err != nil {
		return nil, fmt.Errorf("opening part %s: %w", part, err)
	}
	defer f.Close()

	d := xml.NewDecoder(f)
	var shapes []backend.Shape
	depth, treeDepth := 0, -1
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing part %s: %w", part, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if treeDepth < 0 {
				if t.Name.Local == "spTree" {
					treeDepth = depth
				}
				continue
			}
			if depth != treeDepth+1 {
				continue
			}
			switch t.Name.Local {
			case "nvGrpSpPr", "grpSpPr", "extLst":
				if err := d.Skip(); err != nil {
					return nil, err
				}
			case "sp":
				var sp xmlShape
				if err := d.DecodeElement(&sp, &t); err != nil {
					return nil, fmt.Errorf("parsing shape in %s: %w", part, err)
				}
				if sp.TxBody != nil {
					shapes = append(shapes, backend.TextShape{Content: sp.text(), HasText: true})
				} else {
					shapes = append(shapes, backend.TextShape{})
				}
			default:
				if err := d.Skip(); err != nil {
					return nil, err
				}
				shapes = append(shapes, backend.TextShape{})
			}
			// Skip and DecodeElement consume the end element.
			depth--
		case xml.EndElement:
			if depth == treeDepth {
				return shapes, nil
			}
			depth--
		}
	}
	return shapes, nil
}
