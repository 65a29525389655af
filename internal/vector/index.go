package vector

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of texts sent per embedding request.
const DefaultBatchSize = 32

// Index is a vector collection.
type Index interface {
	// Replace swaps the collection contents for docs in one step. On error the
	// previous contents are kept.
	Replace(ctx context.Context, docs []Document) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Embedder turns texts into vectors, one per text in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Rebuild recreates the collection from docs, embedding them in batches.
// Every batch is embedded before the collection is touched, so a failed
// embedding run leaves the previous collection intact. It returns the number
// of documents written.
func Rebuild(ctx context.Context, idx Index, emb Embedder, docs []Document, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	start := time.Now()

	embedded := make([]Document, len(docs))
	copy(embedded, docs)
	for lo := 0; lo < len(embedded); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return 0, eris.Wrap(err, "vector: rebuild cancelled")
		}
		hi := min(lo+batchSize, len(embedded))
		batch := embedded[lo:hi]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Text
		}
		vecs, err := emb.Embed(ctx, texts)
		if err != nil {
			return 0, eris.Wrapf(err, "vector: embed batch at %d", lo)
		}
		if len(vecs) != len(batch) {
			return 0, eris.Errorf("vector: embedder returned %d vectors for %d documents", len(vecs), len(batch))
		}
		for i := range batch {
			batch[i].Vector = vecs[i]
		}
	}

	if err := idx.Replace(ctx, embedded); err != nil {
		return 0, eris.Wrap(err, "vector: replace collection")
	}

	zap.L().Info("vector: collection rebuilt",
		zap.Int("documents", len(embedded)),
		zap.Int("batch_size", batchSize),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return len(embedded), nil
}
