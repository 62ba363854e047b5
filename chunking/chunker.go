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
	"context"
	"iter"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/poiesic/sharerag/core"
)

// Chunker splits one fetched document into fragments.
//
// The sequence returned by Split is lazy: nothing is downloaded until it is
// first ranged over. A Chunker is single-use, and any later iteration yields
// ErrChunkerConsumed.
type Chunker interface {
	Split(ctx context.Context, idPrefix string) iter.Seq2[core.DocumentFragment, error]
}

// Format builds chunkers for one family of file extensions.
type Format interface {
	Name() string
	Extensions() []string
	NewChunker(downloadURL string) Chunker
}

// Registry selects a Format by file extension.
type Registry struct {
	formats map[string]Format
}

// NewRegistry registers formats under each of their extensions. Later
// formats replace earlier ones for a shared extension.
func NewRegistry(formats ...Format) *Registry {
	r := &Registry{formats: make(map[string]Format)}
	for _, f := range formats {
		r.Register(f)
	}
	return r
}

// Register adds or replaces a format.
func (r *Registry) Register(f Format) {
	for _, ext := range f.Extensions() {
		r.formats[normalizeExt(ext)] = f
	}
}

// Extensions returns the supported extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.formats))
	for ext := range r.formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ForFile returns a chunker for the named file. Unknown extensions return
// a *core.UnsupportedFileTypeError.
func (r *Registry) ForFile(name, downloadURL string) (Chunker, error) {
	ext := normalizeExt(path.Ext(name))
	f, ok := r.formats[ext]
	if !ok {
		return nil, &core.UnsupportedFileTypeError{Extension: ext}
	}
	return f.NewChunker(downloadURL), nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// singleUse guards a chunker against being iterated twice.
type singleUse struct {
	used atomic.Bool
}

// claim wraps produce so that only the first iteration runs it.
func (s *singleUse) claim(produce iter.Seq2[core.DocumentFragment, error]) iter.Seq2[core.DocumentFragment, error] {
	return func(yield func(core.DocumentFragment, error) bool) {
		if !s.used.CompareAndSwap(false, true) {
			yield(core.DocumentFragment{}, ErrChunkerConsumed)
			return
		}
		produce(yield)
	}
}

// Collect drains a fragment sequence, stopping at the first error.
func Collect(seq iter.Seq2[core.DocumentFragment, error]) ([]core.DocumentFragment, error) {
	var fragments []core.DocumentFragment
	for fragment, err := range seq {
		if err != nil {
			return fragments, err
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}
