package rastreader

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/golang/snappy"
	"golang.org/x/net/context"

	perr "github.com/prl900/dc_wms/errors"
)

// BlobStore serves the raw pixel objects referenced by the index.
type BlobStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// BucketStore reads objects from a Google Cloud Storage bucket.
type BucketStore struct {
	name string
	bkt  *storage.BucketHandle
}

// NewBucketStore opens bucket with the default credentials.
func NewBucketStore(ctx context.Context, bucket string) (*BucketStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "Error creating client")
	}
	return &BucketStore{name: bucket, bkt: client.Bucket(bucket)}, nil
}

// Get implements BlobStore.
func (s *BucketStore) Get(ctx context.Context, name string) ([]byte, error) {
	r, err := s.bkt.Object(name).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return nil, perr.NotFoundf("%s object: %s not found", s.name, name)
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeLoadFailure, "Error creating object reader: %s object: %s", s.name, name)
	}
	defer r.Close()

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeLoadFailure, "Error reading from object: %s object: %s", s.name, name)
	}
	return data, nil
}

// DirStore reads objects from a local directory tree.
type DirStore struct {
	Root string
}

// Get implements BlobStore.
func (s DirStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(name)))
	if os.IsNotExist(err) {
		return nil, perr.NotFoundf("%s object: %s not found", s.Root, name)
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeLoadFailure, "Error reading %s", name)
	}
	return data, nil
}

// readObject fetches name and decompresses it when it carries the .snp suffix.
func readObject(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	cdata, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(name) != ".snp" {
		return cdata, nil
	}
	data, err := snappy.Decode(nil, cdata)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeLoadFailure, "Error decompressing data: object: %s", name)
	}
	return data, nil
}
