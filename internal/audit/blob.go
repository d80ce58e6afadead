package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"gocloud.dev/blob"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

type (
	// BlobSink writes each record as one JSON object in a bucket, keyed
	// by job so a job's trail lists in order
	BlobSink struct {
		bucket BucketWriter
		closer func() error
		prefix string
		seq    atomic.Uint64
	}

	// BucketWriter is the subset of a blob bucket the sink needs
	BucketWriter interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
	}
)

const unassignedJob = "_unassigned"

var ErrBucketRequired = errors.New("bucket is required")

var _ Sink = (*BlobSink)(nil)

// NewBlobSink creates a sink writing to an already opened bucket
func NewBlobSink(bucket BucketWriter, prefix string) (*BlobSink, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &BlobSink{
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// OpenBlobSink opens a bucket URL such as file:///var/lib/audit,
// s3://bucket?region=us-east-1, gs://bucket, azblob://container or mem://
// and writes records into it
func OpenBlobSink(
	ctx context.Context, bucketURL, prefix string,
) (*BlobSink, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	s, err := NewBlobSink(bucket, prefix)
	if err != nil {
		_ = bucket.Close()
		return nil, err
	}
	s.closer = bucket.Close
	return s, nil
}

// Record marshals the record and writes it under
// <prefix>/<jobId>/<unixms>-<seq>.json
func (s *BlobSink) Record(ctx context.Context, rec api.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.bucket.WriteAll(ctx, s.keyFor(rec), data, &blob.WriterOptions{
		ContentType: "application/json",
	})
}

// Close releases the bucket when the sink opened it
func (s *BlobSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *BlobSink) keyFor(rec api.AuditRecord) string {
	job := string(rec.JobID)
	if job == "" {
		job = unassignedJob
	}
	name := fmt.Sprintf("%013d-%06d.json",
		rec.Timestamp.UnixMilli(), s.seq.Add(1))
	if s.prefix == "" {
		return job + "/" + name
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + job + "/" + name
}
