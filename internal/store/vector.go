package store

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// Cosine computes cosine similarity between two vectors.
// Mismatched or zero-length vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every embedding against query and returns those at or above
// threshold, most similar first (ties broken by field id), truncated to topK.
func Rank(query []float32, embeddings []model.FieldEmbedding, threshold float64, topK int) []model.ExtractionCandidate {
	var out []model.ExtractionCandidate
	for _, e := range embeddings {
		sim := Cosine(query, e.Vector)
		if sim < threshold {
			continue
		}
		if sim > 1 {
			sim = 1
		}
		out = append(out, model.ExtractionCandidate{FieldID: e.FieldID, Similarity: sim})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].FieldID < out[j].FieldID
	})

	if topK >= 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// float32ToBytes converts a float32 slice to a byte slice (little-endian).
func float32ToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToFloat32 converts a byte slice back to float32 slice (little-endian).
func bytesToFloat32(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func float32To64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func float64To32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
