// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/office2img/internal/progress"
	"github.com/pdiddy/office2img/pkg/types"
)

// TranscriptName is the file the text mode writes into the output directory.
const TranscriptName = "all_presentations.txt"

// NoTextMarker stands in for a slide without any text.
const NoTextMarker = "[No text on slide]"

var (
	runRule   = strings.Repeat("#", 80)
	docRule   = strings.Repeat("=", 80)
	slideRule = strings.Repeat("─", 60)
)

// Transcript is the ordered text of every presentation in a batch.
type Transcript struct {
	blocks []string
}

// NewTranscript starts a transcript with the run header.
func NewTranscript(created time.Time, files int) *Transcript {
	t := &Transcript{}
	t.add(
		runRule,
		"  COMBINED TEXT OF ALL PRESENTATIONS",
		"  Created: "+created.Format("2006-01-02 15:04:05"),
		fmt.Sprintf("  Total files: %d", files),
		runRule,
	)
	return t
}

func (t *Transcript) add(blocks ...string) {
	t.blocks = append(t.blocks, blocks...)
}

// BeginDocument appends a document header. A negative slide count omits
// the count line.
func (t *Transcript) BeginDocument(name string, slides int) {
	t.add("\n\n"+docRule, "PRESENTATION: "+name)
	if slides >= 0 {
		t.add(fmt.Sprintf("Total slides: %d", slides))
	}
	t.add(docRule + "\n")
}

// Slide appends one slide section. Empty texts yield NoTextMarker.
func (t *Transcript) Slide(index int, texts []string) {
	t.add("\n"+slideRule, fmt.Sprintf("SLIDE %d", index), slideRule+"\n")
	if len(texts) == 0 {
		t.add(NoTextMarker)
		return
	}
	t.add(strings.Join(texts, "\n"))
}

// Failed records that the current document could not be fully extracted.
func (t *Transcript) Failed(err error) {
	t.add(fmt.Sprintf("\n[Extraction failed: %v]", err))
}

// String returns the transcript text.
func (t *Transcript) String() string {
	return strings.Join(t.blocks, "\n")
}

// WriteFile writes the transcript to dir/TranscriptName, creating dir, and
// returns the path written.
func (t *Transcript) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, TranscriptName)
	if err := os.WriteFile(path, []byte(t.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}
	return path, nil
}

// Extractor appends the text of presentations to a Transcript.
type Extractor struct {
	sessions Sessions
	w        io.Writer
	log      *logrus.Logger
}

// NewExtractor returns an Extractor. Progress lines are written to w.
func NewExtractor(sessions Sessions, w io.Writer, log *logrus.Logger) *Extractor {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	if w == nil {
		w = io.Discard
	}
	return &Extractor{sessions: sessions, w: w, log: log}
}

// Extract transcribes doc into t. On failure the document is still
// accounted for in t with an extraction failure marker.
func (e *Extractor) Extract(ctx context.Context, doc types.SourceDocument, t *Transcript) (types.FileResult, error) {
	res := types.FileResult{Name: doc.Name, Format: doc.Format}
	slides, err := e.extract(ctx, doc, t)
	res.Pages = slides
	switch {
	case err == nil:
		res.Status = types.ConversionDone
	case errors.Is(err, types.ErrSourceNotFound):
		res.Status = types.ConversionSkipped
		res.Error = err.Error()
	default:
		res.Status = types.ConversionFailed
		res.Error = err.Error()
	}
	return res, err
}

func (e *Extractor) extract(ctx context.Context, doc types.SourceDocument, t *Transcript) (int, error) {
	if err := checkSource(doc.Path); err != nil {
		return 0, err
	}
	pres, err := e.sessions.Presentations(ctx)
	if err != nil {
		return 0, e.fail(t, doc, false, err)
	}
	p, err := pres.Open(ctx, doc.Path)
	if err != nil {
		return 0, e.fail(t, doc, false, fmt.Errorf("opening %s: %w", doc.Name, err))
	}
	defer closeBackend(ctx, e.log, doc.Name, p.Close)

	count, err := p.SlideCount(ctx)
	if err != nil {
		return 0, e.fail(t, doc, false, fmt.Errorf("counting slides of %s: %w", doc.Name, err))
	}
	fmt.Fprintf(e.w, "  slides: %d\n", count)
	t.BeginDocument(doc.Name, count)

	for i := 1; i <= count; i++ {
		shapes, err := p.Shapes(ctx, i)
		if err != nil {
			return i - 1, e.fail(t, doc, true, fmt.Errorf("reading slide %d of %s: %w", i, doc.Name, err))
		}
		var texts []string
		for _, s := range shapes {
			text, ok := s.Text()
			if !ok {
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				texts = append(texts, text)
			}
		}
		t.Slide(i, texts)
		fmt.Fprintf(e.w, "    %s slide %d\n", progress.OK(), i)
	}
	return count, nil
}

// fail marks doc as failed in t, writing its header first when it has not
// been written yet.
func (e *Extractor) fail(t *Transcript, doc types.SourceDocument, headed bool, err error) error {
	if !headed {
		t.BeginDocument(doc.Name, -1)
	}
	t.Failed(err)
	return fmt.Errorf("%w: %w", types.ErrConversion, err)
}
