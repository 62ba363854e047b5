// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chunking

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"iter"
	"log/slog"

	"github.com/gen2brain/go-fitz"
	"github.com/poiesic/sharerag/core"
	"github.com/poiesic/sharerag/vision"
)

// DefaultDPI renders pages at a 150/72 upscale over PDF user space.
const DefaultDPI = 150

// PageSource exposes the pages of an opened document.
type PageSource interface {
	NumPages() int
	Text(page int) (string, error)
	Render(page int, dpi float64) (image.Image, error)
	Close() error
}

// PageOpener parses document bytes into a PageSource.
type PageOpener func(data []byte) (PageSource, error)

// SnapshotStore persists retained page images.
type SnapshotStore interface {
	Put(ctx context.Context, name string, data []byte) error
}

// PDFFormat yields one fragment per page and keeps images of pages that look
// like diagrams or scans.
type PDFFormat struct {
	Fetcher Fetcher
	// Store receives kept page images. With no store, pages are not rendered.
	Store SnapshotStore
	// Opener defaults to MuPDF through go-fitz.
	Opener PageOpener
	// Keep decides whether a rendered page is retained; defaults to vision.KeepPage.
	Keep   func(image.Image) bool
	DPI    float64
	Logger *slog.Logger
}

var _ Format = (*PDFFormat)(nil)

func (f *PDFFormat) Name() string         { return "pdf" }
func (f *PDFFormat) Extensions() []string { return []string{".pdf"} }

// NewChunker returns a page-rendering chunker for the document at downloadURL.
func (f *PDFFormat) NewChunker(downloadURL string) Chunker {
	opener := f.Opener
	if opener == nil {
		opener = OpenFitz
	}
	keep := f.Keep
	if keep == nil {
		keep = vision.KeepPage
	}
	dpi := f.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PageChunker{
		url:     downloadURL,
		fetcher: f.Fetcher,
		store:   f.Store,
		open:    opener,
		keep:    keep,
		dpi:     dpi,
		logger:  logger.With("component", "pdf-chunker"),
	}
}

// PageChunker emits one fragment per page.
type PageChunker struct {
	singleUse
	url     string
	fetcher Fetcher
	store   SnapshotStore
	open    PageOpener
	keep    func(image.Image) bool
	dpi     float64
	logger  *slog.Logger
}

// SnapshotName is the blob name of a kept page image. Pages are 0-based.
func SnapshotName(idPrefix string, page int) string {
	return fmt.Sprintf("%s-%d.png", idPrefix, page)
}

// Split downloads the document and yields its pages in order.
func (c *PageChunker) Split(ctx context.Context, idPrefix string) iter.Seq2[core.DocumentFragment, error] {
	return c.claim(func(yield func(core.DocumentFragment, error) bool) {
		c.logger.Info("processing document", "prefix", idPrefix)
		data, err := c.fetcher.Fetch(ctx, c.url)
		if err != nil {
			yield(core.DocumentFragment{}, err)
			return
		}
		doc, err := c.open(data)
		if err != nil {
			yield(core.DocumentFragment{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err))
			return
		}
		defer doc.Close()

		for page := 0; page < doc.NumPages(); page++ {
			if err := ctx.Err(); err != nil {
				yield(core.DocumentFragment{}, err)
				return
			}
			fragment, err := c.page(ctx, doc, idPrefix, page)
			if !yield(fragment, err) || err != nil {
				return
			}
		}
	})
}

func (c *PageChunker) page(ctx context.Context, doc PageSource, idPrefix string, page int) (core.DocumentFragment, error) {
	text, err := doc.Text(page)
	if err != nil {
		return core.DocumentFragment{}, fmt.Errorf("%w: page %d: %w", ErrInvalidDocument, page, err)
	}
	fragment := core.DocumentFragment{Text: text}
	if c.store == nil {
		return fragment, nil
	}

	img, err := doc.Render(page, c.dpi)
	if err != nil {
		return core.DocumentFragment{}, fmt.Errorf("%w: rendering page %d: %w", ErrInvalidDocument, page, err)
	}
	if !c.keep(img) {
		return fragment, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return core.DocumentFragment{}, fmt.Errorf("encoding page %d: %w", page, err)
	}
	name := SnapshotName(idPrefix, page)
	if err := c.store.Put(ctx, name, buf.Bytes()); err != nil {
		return core.DocumentFragment{}, fmt.Errorf("storing %s: %w", name, err)
	}
	c.logger.Debug("kept page snapshot", "name", name)
	fragment.Snapshot = name
	return fragment, nil
}

// fitzSource adapts a go-fitz document to PageSource.
type fitzSource struct {
	doc *fitz.Document
}

// OpenFitz opens PDF bytes with MuPDF.
func OpenFitz(data []byte) (PageSource, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return &fitzSource{doc: doc}, nil
}

func (s *fitzSource) NumPages() int { return s.doc.NumPage() }

func (s *fitzSource) Text(page int) (string, error) { return s.doc.Text(page) }

func (s *fitzSource) Render(page int, dpi float64) (image.Image, error) {
	return s.doc.ImageDPI(page, dpi)
}

func (s *fitzSource) Close() error { return s.doc.Close() }
