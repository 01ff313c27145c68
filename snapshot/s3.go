/*
Copyright (C) 2026  HyperKV Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store persists snapshots as objects in a bucket, for deployments
// that want snapshots off-box from the node producing them.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Options configures an S3Store. Endpoint and credentials are
// optional; leaving them empty defers to the AWS SDK's default
// credential and region resolution chain.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Store constructs an S3Store from explicit options, mirroring
// the credential/endpoint override shape the teacher's own S3
// integration exposes.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: opts.Bucket, prefix: strings.Trim(opts.Prefix, "/")}, nil
}

func (s *S3Store) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Store) Save(img Image, compression Compression) (string, error) {
	name := fmt.Sprintf("snapshot_%d%s", img.Timestamp, extForCompression(compression))
	payload, err := encode(img, compression)
	if err != nil {
		return "", err
	}
	ctx := context.Background()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(name)),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return "", fmt.Errorf("snapshot: s3 put %s: %w", name, err)
	}
	return name, nil
}

func (s *S3Store) List() ([]string, error) {
	ctx := context.Background()
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot: s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			base := key
			if idx := strings.LastIndex(key, "/"); idx != -1 {
				base = key[idx+1:]
			}
			if strings.HasPrefix(base, "snapshot_") {
				names = append(names, base)
			}
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return snapshotTimestamp(names[i]) < snapshotTimestamp(names[j])
	})
	return names, nil
}

func (s *S3Store) LoadLatest() (Image, bool, error) {
	names, err := s.List()
	if err != nil {
		return Image{}, false, err
	}
	if len(names) == 0 {
		return Image{}, false, nil
	}
	latest := names[len(names)-1]
	ctx := context.Background()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(latest)),
	})
	if err != nil {
		return Image{}, false, fmt.Errorf("snapshot: s3 get %s: %w", latest, err)
	}
	defer out.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return Image{}, false, fmt.Errorf("snapshot: s3 read %s: %w", latest, err)
	}
	img, err := decode(buf.Bytes(), compressionOf(latest))
	if err != nil {
		return Image{}, false, err
	}
	return img, true, nil
}

func (s *S3Store) Retain(n int) error {
	if n <= 0 {
		return nil
	}
	names, err := s.List()
	if err != nil {
		return err
	}
	if len(names) <= n {
		return nil
	}
	ctx := context.Background()
	for _, stale := range names[:len(names)-n] {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(stale)),
		})
		if err != nil {
			return fmt.Errorf("snapshot: s3 delete %s: %w", stale, err)
		}
	}
	return nil
}
