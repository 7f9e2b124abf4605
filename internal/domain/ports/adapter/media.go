package adapter

import "context"

// MediaTool probes and cuts media files with stream copy.
type MediaTool interface {
	Duration(ctx context.Context, path string) (float64, error)
	Cut(ctx context.Context, in, out string, start, duration float64) error
}
