// Package mock provides a test double for ai.Embedder.
//
// MockEmbedder lets tests run without an embedding service and with
// controlled, deterministic vectors.
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service down")
//	}
//
//	count := embedder.CallCount()
package mock
