// Package docs indexes the owner's profile documents and serves semantic
// search over them using local feature-hash embeddings, so no external
// embedding model is needed.
package docs

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

const (
	embeddingDim = 512
	maxChunkLen  = 800
)

// Snippet is an indexed text chunk paired with its embedding vector.
type Snippet struct {
	Filename  string
	Text      string
	embedding []float32
}

// Index holds the embedded document chunks for one directory.
type Index struct {
	snippets []Snippet
	logger   zerolog.Logger
}

// NewIndex loads and embeds all .txt, .md and .pdf files from dir. A missing
// or empty directory yields an index whose searches return nothing.
func NewIndex(dir string, logger zerolog.Logger) (*Index, error) {
	idx := &Index{logger: logger}

	chunks, err := loadChunks(dir)
	if err != nil {
		return nil, fmt.Errorf("docs: load %q: %w", dir, err)
	}
	if len(chunks) == 0 {
		logger.Warn().Str("dir", dir).Msg("docs: no documents indexed, search will return no results")
		return idx, nil
	}

	for _, c := range chunks {
		idx.snippets = append(idx.snippets, Snippet{
			Filename:  c.filename,
			Text:      c.text,
			embedding: embed(c.text),
		})
	}

	logger.Info().Int("chunks", len(idx.snippets)).Str("dir", dir).Msg("docs: indexed documents")
	return idx, nil
}

// Search returns the topK most relevant snippets for the query.
func (idx *Index) Search(query string, topK int) []Snippet {
	if idx == nil || len(idx.snippets) == 0 || topK <= 0 {
		return nil
	}

	queryVec := embed(query)

	type scored struct {
		snippet Snippet
		score   float32
	}
	results := make([]scored, 0, len(idx.snippets))
	for _, s := range idx.snippets {
		results = append(results, scored{snippet: s, score: cosine(queryVec, s.embedding)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	if topK > len(results) {
		topK = len(results)
	}
	out := make([]Snippet, topK)
	for i := range out {
		out[i] = results[i].snippet
	}
	return out
}

// embed converts text into a fixed-size vector via feature hashing.
func embed(text string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%embeddingDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm = math.Sqrt(norm); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

type chunk struct {
	filename string
	text     string
}

func loadChunks(dir string) ([]chunk, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var chunks []chunk
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var text string
		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt", ".md":
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			text = string(data)
		case ".pdf":
			text, err = readPDF(filepath.Join(dir, name))
			if err != nil {
				return nil, fmt.Errorf("read pdf %q: %w", name, err)
			}
		default:
			continue
		}

		for _, part := range splitChunks(text, maxChunkLen) {
			chunks = append(chunks, chunk{filename: name, text: part})
		}
	}

	return chunks, nil
}

func splitChunks(text string, maxLen int) []string {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")

	var out []string
	var current strings.Builder

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+len(p)+2 > maxLen {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}

	if current.Len() > 0 {
		out = append(out, strings.TrimSpace(current.String()))
	}

	return out
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
