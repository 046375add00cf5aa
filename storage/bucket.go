package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/blang/semver"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
)

func init() {
	RegisterEngine(bucketEngine{"bucket", "cloud bucket (gs://, file://, mem://)", semver.MustParse("0.1.0")})
}

const samplePrefix = "samples/"

type bucketEngine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e bucketEngine) GetName() string {
	return e.name
}

func (e bucketEngine) GetDescription() string {
	return e.desc
}

func (e bucketEngine) GetSemVer() semver.Version {
	return e.semver
}

func (e bucketEngine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// NewStore opens the bucket URL given by the "bucket" setting.
func (e bucketEngine) NewStore(c Config) (SampleStore, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("%q must be specified for bucket store", "bucket")
	}
	codec, err := c.Codec()
	if err != nil {
		return nil, err
	}
	return OpenBucketStore(context.Background(), c.Bucket, codec)
}

// BucketStore keeps encoded samples as objects in a gocloud blob bucket.
type BucketStore struct {
	ref    string
	bucket *blob.Bucket
	codec  sample.Codec
}

// OpenBucketStore opens a bucket reference such as "gs://my-bucket",
// "file:///data/samples" or "mem://".
func OpenBucketStore(ctx context.Context, ref string, codec sample.Codec) (*BucketStore, error) {
	bucket, err := blob.OpenBucket(ctx, ref)
	if err != nil {
		dvid.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
		return nil, err
	}
	return &BucketStore{ref: ref, bucket: bucket, codec: codec}, nil
}

func (bs *BucketStore) String() string {
	return fmt.Sprintf("bucket @ %s (%s compression)", bs.ref, bs.codec.Compression)
}

func objectKey(id string) string {
	return samplePrefix + id
}

func (bs *BucketStore) PutSample(ctx context.Context, s *sample.Sample) error {
	w, err := bs.bucket.NewWriter(ctx, objectKey(s.ID), &blob.WriterOptions{ContentType: sample.ContentType})
	if err != nil {
		return err
	}
	if err := bs.codec.Encode(w, s); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (bs *BucketStore) GetSample(ctx context.Context, id string) (*sample.Sample, error) {
	r, err := bs.bucket.NewReader(ctx, objectKey(id), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%s in %s: %w", id, bs, ErrNotFound)
		}
		return nil, err
	}
	defer r.Close()
	return bs.codec.Decode(r)
}

func (bs *BucketStore) SampleIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := bs.bucket.List(&blob.ListOptions{Prefix: samplePrefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if obj.IsDir {
			continue
		}
		ids = append(ids, strings.TrimPrefix(obj.Key, samplePrefix))
	}
	sort.Strings(ids)
	return ids, nil
}

func (bs *BucketStore) DeleteSample(ctx context.Context, id string) error {
	if err := bs.bucket.Delete(ctx, objectKey(id)); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("%s in %s: %w", id, bs, ErrNotFound)
		}
		return err
	}
	return nil
}

func (bs *BucketStore) Close() error {
	return bs.bucket.Close()
}
