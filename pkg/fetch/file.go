package fetch

import (
	"context"
	"net/url"

	"github.com/spf13/afero"
	"github.com/warpdl/warpq/pkg/warpq"
)

// FileFetcher reads file URLs from Fs.
type FileFetcher struct {
	Fs afero.Fs
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context, u *url.URL, settings *warpq.TransportSettings) ([]byte, error) {
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return nil, warpq.NewFetchError("file", "parse", ErrMissingPath)
	}
	fh, err := f.Fs.Open(p)
	if err != nil {
		return nil, warpq.NewFetchError("file", "open", err)
	}
	defer fh.Close()
	payload, err := readAll(ctx, fh, settings.SpeedLimit)
	if err != nil {
		return nil, warpq.NewFetchError("file", "read", err)
	}
	return payload, nil
}
