package network

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Source is a loaded page document plus the filesystem its external
// scripts resolve against.
type Source struct {
	// Location is the final URL or the cleaned file path.
	Location string
	Body     []byte
	// FS resolves script src values relative to the page.
	FS fs.FS
}

// IsRemote reports whether location is an http or https URL.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Open loads location, which is an http(s) URL or a local path. Remote
// pages get an FS that fetches scripts through c with ctx.
func (c *Client) Open(ctx context.Context, location string) (*Source, error) {
	if !IsRemote(location) {
		return OpenFile(location)
	}
	resp, err := c.Get(ctx, location)
	if err != nil {
		return nil, err
	}
	return &Source{
		Location: resp.URL.String(),
		Body:     resp.Body,
		FS:       &remoteFS{ctx: ctx, client: c, base: resp.URL},
	}, nil
}

// OpenFile reads a local page. Scripts resolve against its directory.
func OpenFile(name string) (*Source, error) {
	name = filepath.Clean(name)
	body, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &Source{
		Location: name,
		Body:     body,
		FS:       os.DirFS(filepath.Dir(name)),
	}, nil
}

// remoteFS serves script sources relative to a page URL.
type remoteFS struct {
	ctx    context.Context
	client *Client
	base   *url.URL
}

var _ fs.ReadFileFS = (*remoteFS)(nil)

// ResolveURL resolves ref against base. Absolute refs are returned as is.
func ResolveURL(base *url.URL, ref string) (*url.URL, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid reference URL: %w", err)
	}
	return base.ResolveReference(refURL), nil
}

// ReadFile fetches name. Names are slash separated and already stripped
// of a leading "/", so they resolve against the page's directory.
func (r *remoteFS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	u, err := ResolveURL(r.base, name)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	resp, err := r.client.Get(r.ctx, u.String())
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return resp.Body, nil
}

func (r *remoteFS) Open(name string) (fs.File, error) {
	data, err := r.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &remoteFile{name: path.Base(name), Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

// remoteFile is a fetched body exposed as an fs.File.
type remoteFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *remoteFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *remoteFile) Close() error               { return nil }

func (f *remoteFile) Name() string       { return f.name }
func (f *remoteFile) Size() int64        { return f.size }
func (f *remoteFile) Mode() fs.FileMode  { return 0o444 }
func (f *remoteFile) ModTime() time.Time { return time.Time{} }
func (f *remoteFile) IsDir() bool        { return false }
func (f *remoteFile) Sys() any           { return nil }
