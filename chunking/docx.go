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
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/poiesic/sharerag/core"
)

const (
	// DefaultTokenLimit is the block size used when none is configured.
	DefaultTokenLimit = 1000

	// ProductionTokenLimit is the block size used by the default service wiring.
	ProductionTokenLimit = 500
)

// DocxFormat packs Word document paragraphs into token-bounded fragments.
type DocxFormat struct {
	Fetcher    Fetcher
	Counter    TokenCounter
	TokenLimit int
	Logger     *slog.Logger
}

var _ Format = (*DocxFormat)(nil)

func (f *DocxFormat) Name() string         { return "docx" }
func (f *DocxFormat) Extensions() []string { return []string{".docx"} }

// NewChunker returns a paragraph-packing chunker for the document at downloadURL.
func (f *DocxFormat) NewChunker(downloadURL string) Chunker {
	limit := f.TokenLimit
	if limit <= 0 {
		limit = DefaultTokenLimit
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ParagraphChunker{
		url:     downloadURL,
		fetcher: f.Fetcher,
		counter: f.Counter,
		limit:   limit,
		logger:  logger.With("component", "docx-chunker"),
	}
}

// ParagraphChunker emits blocks of consecutive paragraphs whose combined token
// count stays within a limit.
type ParagraphChunker struct {
	singleUse
	url     string
	fetcher Fetcher
	counter TokenCounter
	limit   int
	logger  *slog.Logger
}

// Split downloads the document and yields packed paragraph blocks.
func (c *ParagraphChunker) Split(ctx context.Context, idPrefix string) iter.Seq2[core.DocumentFragment, error] {
	return c.claim(func(yield func(core.DocumentFragment, error) bool) {
		c.logger.Info("processing document", "prefix", idPrefix)
		data, err := c.fetcher.Fetch(ctx, c.url)
		if err != nil {
			yield(core.DocumentFragment{}, err)
			return
		}
		paragraphs, err := DocxParagraphs(data)
		if err != nil {
			yield(core.DocumentFragment{}, err)
			return
		}
		for fragment := range Pack(paragraphs, c.counter, c.limit) {
			if !yield(fragment, nil) {
				return
			}
		}
	})
}

// Pack groups paragraphs in order into blocks of at most limit tokens.
// Paragraphs with no tokens are skipped. A paragraph that would push the
// current block over the limit starts the next block; each paragraph is
// followed by a newline.
func Pack(paragraphs []string, counter TokenCounter, limit int) iter.Seq[core.DocumentFragment] {
	return func(yield func(core.DocumentFragment) bool) {
		var block strings.Builder
		tokens := 0
		for _, para := range paragraphs {
			n := counter.Count(para)
			if n == 0 {
				continue
			}
			if tokens > 0 && tokens+n > limit {
				if !yield(core.DocumentFragment{Text: block.String()}) {
					return
				}
				block.Reset()
				tokens = 0
			}
			block.WriteString(para)
			block.WriteByte('\n')
			tokens += n
		}
		if tokens > 0 {
			yield(core.DocumentFragment{Text: block.String()})
		}
	}
}

const wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// DocxParagraphs returns the text of each top-level body paragraph in a .docx
// archive, in document order. Tabs and breaks inside runs are kept as "\t"
// and "\n".
func DocxParagraphs(data []byte) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		defer rc.Close()
		return parseParagraphs(rc)
	}
	return nil, fmt.Errorf("%w: missing word/document.xml", ErrInvalidDocument)
}

func parseParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		stack      []string
		inText     bool
		paraDepth  = -1
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if t.Name.Space != "" && t.Name.Space != wordNamespace {
				name = ""
			}
			stack = append(stack, name)
			depth := len(stack)
			switch {
			case name == "p" && paraDepth < 0 && depth >= 2 && stack[depth-2] == "body":
				paraDepth = depth
				current.Reset()
			case paraDepth < 0:
			case name == "t":
				inText = true
			case name == "tab":
				current.WriteByte('\t')
			case name == "br" || name == "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if len(stack) == paraDepth {
				paragraphs = append(paragraphs, current.String())
				paraDepth = -1
			}
			if len(stack) > 0 && stack[len(stack)-1] == "t" {
				inText = false
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if inText && paraDepth > 0 {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}
