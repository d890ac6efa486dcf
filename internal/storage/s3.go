package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/radiusdt/adinsights/internal/models"
	"go.uber.org/zap"
)

// S3PutObjectAPI is the subset of *s3.Client the exporter uses.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter writes raw rows as JSON lines to S3.
type S3Exporter struct {
	client S3PutObjectAPI
	bucket string
	prefix string // e.g. "raw-insights/"
	logger *zap.Logger
}

// NewS3Exporter creates an exporter writing under s3://bucket/prefix.
func NewS3Exporter(client S3PutObjectAPI, bucket, prefix string, logger *zap.Logger) *S3Exporter {
	return &S3Exporter{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// ObjectKey returns the key rows for meta are written to.
func (e *S3Exporter) ObjectKey(meta ExportMeta) string {
	return fmt.Sprintf("%s%s/%s/%s/%s.jsonl", e.prefix, meta.AccountID, meta.Level, meta.DateRange, meta.RunID)
}

// ExportRows uploads rows and returns the s3:// URI of the object.
func (e *S3Exporter) ExportRows(ctx context.Context, meta ExportMeta, rows []models.ReportRow) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return "", fmt.Errorf("failed to encode row %d: %w", i, err)
		}
	}

	key := e.ObjectKey(meta)
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	uri := fmt.Sprintf("s3://%s/%s", e.bucket, key)
	e.logger.Info("exported report rows",
		zap.String("uri", uri),
		zap.Int("rows", len(rows)),
	)
	return uri, nil
}
