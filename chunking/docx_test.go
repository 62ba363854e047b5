package chunking

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/sharerag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter counts whitespace-separated words as tokens.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// fixedCounter returns a preset count per paragraph text.
type fixedCounter map[string]int

func (f fixedCounter) Count(text string) int { return f[text] }

type memoryFetcher struct {
	data  []byte
	err   error
	calls int
}

func (m *memoryFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.calls++
	return m.data, m.err
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func TestPack_FlushesBeforeOverflow(t *testing.T) {
	paragraphs := []string{"one", "two", "three"}
	counter := fixedCounter{"one": 400, "two": 400, "three": 400}

	var got []core.DocumentFragment
	for f := range Pack(paragraphs, counter, 1000) {
		got = append(got, f)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "one\ntwo\n", got[0].Text)
	assert.Equal(t, "three\n", got[1].Text)
	assert.False(t, got[0].HasSnapshot())
}

func TestPack_SkipsEmptyParagraphs(t *testing.T) {
	var got []string
	for f := range Pack([]string{"", "a b", "   ", "c"}, wordCounter{}, 10) {
		got = append(got, f.Text)
	}
	assert.Equal(t, []string{"a b\nc\n"}, got)
}

func TestPack_OversizedParagraphStandsAlone(t *testing.T) {
	counter := fixedCounter{"big": 50, "small": 1}
	var got []string
	for f := range Pack([]string{"big", "small"}, counter, 10) {
		got = append(got, f.Text)
	}
	assert.Equal(t, []string{"big\n", "small\n"}, got)
}

func TestPack_NoParagraphs(t *testing.T) {
	count := 0
	for range Pack(nil, wordCounter{}, 10) {
		count++
	}
	assert.Zero(t, count)
}

func TestDocxParagraphs(t *testing.T) {
	data := buildDocx(t,
		para("First paragraph")+
			`<w:p><w:r><w:t>Split </w:t></w:r><w:r><w:t>runs</w:t><w:tab/><w:t>tabbed</w:t><w:br/><w:t>broken</w:t></w:r></w:p>`+
			`<w:p/>`+
			`<w:tbl><w:tr><w:tc>`+para("in a table")+`</w:tc></w:tr></w:tbl>`+
			para("Last"))

	paragraphs, err := DocxParagraphs(data)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"First paragraph",
		"Split runs\ttabbed\nbroken",
		"",
		"Last",
	}, paragraphs)
}

func TestDocxParagraphs_Invalid(t *testing.T) {
	_, err := DocxParagraphs([]byte("not a zip"))
	assert.ErrorIs(t, err, ErrInvalidDocument)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	require.NoError(t, zw.Close())
	_, err = DocxParagraphs(buf.Bytes())
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestParagraphChunker_Split(t *testing.T) {
	fetcher := &memoryFetcher{data: buildDocx(t, para("alpha beta")+para("gamma delta")+para("epsilon"))}
	format := &DocxFormat{Fetcher: fetcher, Counter: wordCounter{}, TokenLimit: 4}

	chunker := format.NewChunker("https://download/doc")
	assert.Zero(t, fetcher.calls, "fetch should be deferred until iteration")

	fragments, err := Collect(chunker.Split(context.Background(), "drive-doc"))
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, "alpha beta\ngamma delta\n", fragments[0].Text)
	assert.Equal(t, "epsilon\n", fragments[1].Text)
	assert.Equal(t, 1, fetcher.calls)
}

func TestParagraphChunker_SingleUse(t *testing.T) {
	fetcher := &memoryFetcher{data: buildDocx(t, para("alpha"))}
	chunker := (&DocxFormat{Fetcher: fetcher, Counter: wordCounter{}}).NewChunker("u")

	_, err := Collect(chunker.Split(context.Background(), "p"))
	require.NoError(t, err)

	_, err = Collect(chunker.Split(context.Background(), "p"))
	assert.ErrorIs(t, err, ErrChunkerConsumed)
	assert.Equal(t, 1, fetcher.calls)
}

func TestParagraphChunker_FetchError(t *testing.T) {
	fetcher := &memoryFetcher{err: ErrFetch}
	chunker := (&DocxFormat{Fetcher: fetcher, Counter: wordCounter{}}).NewChunker("u")

	_, err := Collect(chunker.Split(context.Background(), "p"))
	assert.True(t, errors.Is(err, ErrFetch))
}

func TestParagraphChunker_EarlyStop(t *testing.T) {
	fetcher := &memoryFetcher{data: buildDocx(t, para("a")+para("b")+para("c"))}
	chunker := (&DocxFormat{Fetcher: fetcher, Counter: wordCounter{}, TokenLimit: 1}).NewChunker("u")

	seen := 0
	for _, err := range chunker.Split(context.Background(), "p") {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}
