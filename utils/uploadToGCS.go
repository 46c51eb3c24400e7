package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// GCS_CREDENTIALS_JSON overrides it for local runs.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// ReportBucket returns bucket, falling back to MATCH_REPORT_BUCKET then GCS_BUCKET.
func ReportBucket(bucket string) string {
	if b := strings.TrimSpace(bucket); b != "" {
		return b
	}
	if b := strings.TrimSpace(os.Getenv("MATCH_REPORT_BUCKET")); b != "" {
		return b
	}
	return strings.TrimSpace(os.Getenv("GCS_BUCKET"))
}

// UploadBytesToGCS writes data to gs://bucket/objectName and returns the gs:// url.
func UploadBytesToGCS(ctx context.Context, bucket string, objectName string, data []byte, contentType string) (string, error) {
	bucketName := ReportBucket(bucket)
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
