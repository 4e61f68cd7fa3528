package memory

import (
	"context"
	"fmt"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"
)

const chromemCollection = "forgekeeper_episodes"

// ChromemIndex is an optional embedded vector-search backend for the
// episodic store, enabled by calling Store.EnableChromemBackend in place
// of the default in-process TF-IDF linear scan; no config key selects it. Both implement the same capability — embed
// externally, index pre-computed vectors, query by vector — mirroring
// hector's interchangeable vector.Provider backends (chromem vs a remote
// provider). Embeddings here are still produced by this package's
// Vectorizer; chromem only accelerates the similarity search itself.
type ChromemIndex struct {
	db     *chromem.DB
	col    *chromem.Collection
	dbPath string
}

// OpenChromemIndex opens (creating if needed) a persistent chromem-go
// database under dir and its single episodes collection.
func OpenChromemIndex(dir string) (*ChromemIndex, error) {
	dbPath := filepath.Join(dir, "chromem_vectors.gob")
	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		db = chromem.NewDB()
	}

	// Vectors are always pre-computed by Vectorizer.Embed; this function
	// should never be invoked by chromem itself.
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("memory: chromem embedding func invoked but vectors are pre-computed")
	}

	col, err := db.GetOrCreateCollection(chromemCollection, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("memory: open chromem collection: %w", err)
	}

	return &ChromemIndex{db: db, col: col, dbPath: dbPath}, nil
}

// Upsert indexes one pre-computed embedding under id, with string metadata
// for later filtering (chromem-go requires string-valued metadata), then
// persists to disk the same way the teacher's vector.ChromemProvider does
// after every write.
func (c *ChromemIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string, content string) error {
	doc := chromem.Document{ID: id, Content: content, Metadata: metadata, Embedding: vector}
	if err := c.col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return err
	}
	return c.persist()
}

func (c *ChromemIndex) persist() error {
	//nolint:staticcheck // Export is deprecated in favor of per-collection persistence, kept for broad version compatibility.
	return c.db.Export(c.dbPath, false, "")
}

// ChromemHit is one similarity-search result from the chromem backend.
type ChromemHit struct {
	ID    string
	Score float64
}

// Query returns the topK nearest documents to vector, optionally filtered
// by exact-match metadata.
func (c *ChromemIndex) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]ChromemHit, error) {
	if topK > c.col.Count() {
		topK = c.col.Count()
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := c.col.QueryEmbedding(ctx, vector, topK, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: chromem query: %w", err)
	}

	hits := make([]ChromemHit, len(results))
	for i, r := range results {
		hits[i] = ChromemHit{ID: r.ID, Score: float64(r.Similarity)}
	}
	return hits, nil
}

// Close persists the database to disk one last time.
func (c *ChromemIndex) Close() error {
	return c.persist()
}
