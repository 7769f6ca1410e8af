package property

import "context"

// Extractor is the request/response adapter in front of the generative model.
// One call is one outbound request: no retry, no cache.
type Extractor interface {
	Analyze(ctx context.Context, url string) (Details, error)
}

// Archive port (interface untuk penyimpanan hasil)
type Archive interface {
	Put(ctx context.Context, key string, payload []byte) (string, error)
}
