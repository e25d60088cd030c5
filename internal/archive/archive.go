// Package archive keeps a copy of every uploaded CSV file in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// objectPutter is the subset of the S3 client used here.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores raw uploads under <prefix>/<yyyy>/<mm>/<importID>-<file>.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Archiver creates an archiver for bucket from an AWS config.
func NewS3Archiver(cfg aws.Config, bucket, prefix string) *S3Archiver {
	return &S3Archiver{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Archive uploads data and returns the object key.
func (a *S3Archiver) Archive(ctx context.Context, importID, fileName string, data []byte) (string, error) {
	key := a.key(importID, fileName)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
		Metadata: map[string]string{
			"import-id":     importID,
			"original-name": fileName,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", fileName, err)
	}
	return key, nil
}

func (a *S3Archiver) key(importID, fileName string) string {
	t := a.now().UTC()
	name := importID + "-" + safeName(fileName)
	dated := path.Join(fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())), name)
	if a.prefix == "" {
		return dated
	}
	return path.Join(a.prefix, dated)
}

// safeName drops any directory part and replaces characters that are
// awkward in object keys.
func safeName(fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.csv"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
