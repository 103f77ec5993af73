package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
)

func newTestS3BlobStore(t *testing.T) *S3BlobStore {
	bucket := os.Getenv("S3_TEST_BUCKET")
	region := os.Getenv("S3_TEST_REGION")
	if bucket == "" || region == "" {
		t.Skip("S3_TEST_BUCKET or S3_TEST_REGION not set")
	}
	store, err := NewS3BlobStore(context.Background(), bucket, region)
	if err != nil {
		t.Fatalf("NewS3BlobStore failed: %v", err)
	}
	return store
}

func TestNewS3BlobStore(t *testing.T) {
	_ = newTestS3BlobStore(t)
}

func TestBlobStore_RoundTrip(t *testing.T) {
	store := newTestS3BlobStore(t)
	value := []byte("test-data")
	mime := "text/plain"
	filename := "test.txt"
	url, err := store.Put(context.Background(), value, mime, filename)
	if err != nil {
		t.Errorf("Put failed: %v", err)
	}
	_, err = store.Get(context.Background(), url)
	if err != nil {
		t.Errorf("Get failed: %v", err)
	}
}

func TestBlobStore_EmptyData(t *testing.T) {
	store := newTestS3BlobStore(t)
	url, err := store.Put(context.Background(), []byte{}, "text/plain", "empty.txt")
	if err != nil {
		t.Errorf("Put failed for empty data: %v", err)
	}
	_, err = store.Get(context.Background(), url)
	if err != nil {
		t.Errorf("Get failed for empty data: %v", err)
	}
}

func TestBlobStore_GetUnknownURL(t *testing.T) {
	store := newTestS3BlobStore(t)
	_, err := store.Get(context.Background(), "s3://dummy-url/unknown.txt")
	if err == nil {
		t.Errorf("expected error for a URL outside the configured bucket, got nil")
	}
}

func TestBlobStore_Concurrency(t *testing.T) {
	store := newTestS3BlobStore(t)
	done := make(chan bool, 2)
	go func() {
		if _, err := store.Put(context.Background(), []byte("a"), "text/plain", "a.txt"); err != nil {
			t.Errorf("Put failed: %v", err)
		}
		if _, err := store.Get(context.Background(), "s3://"+store.bucket+"/a.txt"); err != nil {
			t.Errorf("Get failed: %v", err)
		}
		done <- true
	}()
	go func() {
		if _, err := store.Put(context.Background(), []byte("b"), "text/plain", "b.txt"); err != nil {
			t.Errorf("Put failed: %v", err)
		}
		if _, err := store.Get(context.Background(), "s3://"+store.bucket+"/b.txt"); err != nil {
			t.Errorf("Get failed: %v", err)
		}
		done <- true
	}()
	<-done
	<-done
}

func TestBlobStore_DoubleStore(t *testing.T) {
	store := newTestS3BlobStore(t)
	_, err1 := store.Put(context.Background(), []byte("first"), "text/plain", "dup.txt")
	_, err2 := store.Put(context.Background(), []byte("second"), "text/plain", "dup.txt")
	if err1 != nil || err2 != nil {
		t.Errorf("expected no error for double store, got %v, %v", err1, err2)
	}
}

func TestBlobStore_ErrorCase(t *testing.T) {
	store := newTestS3BlobStore(t)
	_, err := store.Put(context.Background(), nil, "", "")
	if err == nil {
		t.Errorf("expected error for empty filename, got nil")
	}
}

func TestS3BlobStore_InvalidURL(t *testing.T) {
	bucket := os.Getenv("S3_TEST_BUCKET")
	region := os.Getenv("S3_TEST_REGION")
	if bucket == "" || region == "" {
		t.Skip("S3_TEST_BUCKET or S3_TEST_REGION not set")
	}
	store, err := NewS3BlobStore(context.Background(), bucket, region)
	if err != nil {
		t.Fatalf("NewS3BlobStore failed: %v", err)
	}
	_, err = store.Get(context.Background(), "not-an-s3-url")
	if err == nil {
		t.Errorf("expected error for invalid s3 URL, got nil")
	}
}

func TestS3BlobStore_InvalidConfig(t *testing.T) {
	_, err := NewS3BlobStore(context.Background(), "", "")
	if err == nil {
		t.Errorf("expected error for invalid S3 config, got nil")
	}
}

// Enhanced S3 tests that don't require AWS credentials

func TestNewS3BlobStore_ValidationErrors(t *testing.T) {
	ctx := context.Background()

	// Test with empty bucket
	store, err := NewS3BlobStore(ctx, "", "us-west-2")
	if err == nil {
		t.Error("NewS3BlobStore with empty bucket should fail")
	}
	if store != nil {
		t.Error("Expected nil store for empty bucket")
	}

	// Test with empty region
	store, err = NewS3BlobStore(ctx, "test-bucket", "")
	if err == nil {
		t.Error("NewS3BlobStore with empty region should fail")
	}
	if store != nil {
		t.Error("Expected nil store for empty region")
	}

	// Test with both empty
	store, err = NewS3BlobStore(ctx, "", "")
	if err == nil {
		t.Error("NewS3BlobStore with empty bucket and region should fail")
	}
	if store != nil {
		t.Error("Expected nil store for empty bucket and region")
	}
}

func TestNewS3BlobStore_ValidParams(t *testing.T) {
	ctx := context.Background()

	// Test with valid parameters - may fail due to AWS credentials but should
	// test the validation and setup code path
	store, err := NewS3BlobStore(ctx, "test-bucket", "us-west-2")

	// We don't expect this to necessarily succeed in a test environment
	// but we want to ensure it doesn't panic and follows the proper code path
	if err != nil {
		t.Logf("S3BlobStore creation failed as expected in test environment: %v", err)
		// The function should fail gracefully, not panic
		return
	}

	// If it succeeds (e.g., in an environment with AWS credentials),
	// verify the store is properly constructed
	if store == nil {
		t.Error("Expected non-nil store when no error")
		return
	}

	if store.bucket != "test-bucket" {
		t.Errorf("Expected bucket 'test-bucket', got %s", store.bucket)
	}

	if store.region != "us-west-2" {
		t.Errorf("Expected region 'us-west-2', got %s", store.region)
	}

	if store.client == nil {
		t.Error("Expected non-nil S3 client")
	}
}

func TestS3BlobStore_URLParsing(t *testing.T) {
	// Create a mock S3BlobStore to test URL parsing logic
	// This tests the Get method's URL parsing without requiring AWS
	store := &S3BlobStore{
		bucket: "test-bucket",
		region: "us-west-2",
		client: nil, // We won't call actual AWS operations
	}

	// Both URLs below are rejected by parsing or the bucket check, before
	// the nil client is used
	ctx := context.Background()

	// Test invalid URL format
	_, err := store.Get(ctx, "invalid-url")
	if err == nil {
		t.Error("Expected error for invalid URL format")
	}

	// Test URL with wrong bucket - rejected by the bucket check
	_, err = store.Get(ctx, "s3://wrong-bucket/test-key")
	if err == nil {
		t.Error("Expected error for URL parsing or bucket mismatch")
	}

	// The error is the bucket mismatch, returned before any S3 call
	t.Logf("URL parsing error (expected): %v", err)
}

func TestS3BlobStore_PutMethodSignature(t *testing.T) {
	// Test that S3BlobStore has the correct Put method signature without calling AWS
	store := &S3BlobStore{
		bucket: "test-bucket",
		region: "us-west-2",
		client: nil, // No real client
	}

	// We're only testing the method signature exists and compiles
	// We don't actually call it since that would panic with nil client
	_ = store

	// Just verify the struct fields are accessible
	if store.bucket != "test-bucket" {
		t.Errorf("Expected bucket 'test-bucket', got %s", store.bucket)
	}

	// The actual Put method call would panic with nil client, so we skip it
	// This test just ensures the method signature compiles correctly
}

func TestS3BlobStore_StructFields(t *testing.T) {
	// Test S3BlobStore struct field access
	store := &S3BlobStore{
		bucket: "my-bucket",
		region: "eu-west-1",
		client: nil,
	}

	if store.bucket != "my-bucket" {
		t.Errorf("Expected bucket 'my-bucket', got %s", store.bucket)
	}

	if store.region != "eu-west-1" {
		t.Errorf("Expected region 'eu-west-1', got %s", store.region)
	}
}

func TestS3BlobStore_GetErrorCases(t *testing.T) {
	// Create a mock store to test URL parsing and validation
	store := &S3BlobStore{
		bucket: "test-bucket",
		region: "us-west-2",
		client: nil, // No real client to avoid AWS calls
	}

	ctx := context.Background()

	// Test various invalid URL formats that should fail parsing
	testCases := []struct {
		name string
		url  string
	}{
		{"empty URL", ""},
		{"non-s3 URL", "http://example.com/file.txt"},
		{"malformed s3 URL", "s3://"},
		{"s3 URL without key", "s3://bucket"},
		{"s3 URL with spaces", "s3://bucket with spaces/key"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Get(ctx, tc.url)
			if err == nil {
				t.Errorf("Expected error for %s, got nil", tc.name)
			}
			t.Logf("Got expected error for %s: %v", tc.name, err)
		})
	}

	// Note: a well-formed URL naming another bucket is covered by
	// TestS3BlobStore_URLParsing
}

func TestS3BlobStore_PutInputValidation(t *testing.T) {
	// Test that we can exercise Put method validation logic
	// We'll create a store but the actual S3 call will fail, which is expected
	store := &S3BlobStore{
		bucket: "test-bucket",
		region: "us-west-2",
		client: nil, // This will cause Put to panic or fail, but that's expected
	}

	ctx := context.Background()

	// Test Put with various inputs - this will fail at the AWS call level
	// but we want to ensure the method signature works and doesn't panic
	// before reaching the AWS SDK call
	defer func() {
		if r := recover(); r != nil {
			// A panic is expected since we have a nil client
			t.Logf("Put method panicked as expected with nil client: %v", r)
		}
	}()

	// This will likely panic or error at the AWS SDK level, which is expected
	_, err := store.Put(ctx, []byte("test data"), "text/plain", "test.txt")
	if err != nil {
		t.Logf("Put failed as expected with nil client: %v", err)
	}
}

func TestS3BlobStore_GetURLFormatting(t *testing.T) {
	// Test the URL formatting logic in Put method by checking expected format
	// We can't test the actual Put due to AWS requirements, but we can test
	// the URL format that should be returned

	bucket := "my-test-bucket"
	filename := "test-file.txt"

	// Expected URL format
	expectedURL := fmt.Sprintf("s3://%s/%s", bucket, filename)

	if expectedURL != "s3://my-test-bucket/test-file.txt" {
		t.Errorf("URL formatting logic test failed: got %s", expectedURL)
	}

	// Test with different filenames
	testFiles := []string{
		"simple.txt",
		"path/to/file.jpg",
		"file-with-dashes.pdf",
		"file_with_underscores.doc",
	}

	for _, file := range testFiles {
		url := fmt.Sprintf("s3://%s/%s", bucket, file)
		if !strings.HasPrefix(url, "s3://"+bucket+"/") {
			t.Errorf("URL should start with s3://%s/, got %s", bucket, url)
		}
		if !strings.HasSuffix(url, file) {
			t.Errorf("URL should end with %s, got %s", file, url)
		}
	}
}

func TestS3BlobStore_URLParsingLogic(t *testing.T) {
	// Test the s3://bucket/key shape conceptually, without calling Get
	testCases := []struct {
		name          string
		url           string
		expectedValid bool
	}{
		{
			name:          "valid s3 URL",
			url:           "s3://my-bucket/my-key.txt",
			expectedValid: true,
		},
		{
			name:          "s3 URL with path",
			url:           "s3://my-bucket/path/to/file.jpg",
			expectedValid: true,
		},
		{
			name:          "invalid format",
			url:           "http://example.com/file.txt",
			expectedValid: false,
		},
		{
			name:          "missing key",
			url:           "s3://bucket-only",
			expectedValid: false,
		},
		{
			name:          "empty URL",
			url:           "",
			expectedValid: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Check the s3://bucket/key shape directly
			isValid := strings.HasPrefix(tc.url, "s3://") &&
				strings.Contains(tc.url[5:], "/") &&
				len(tc.url) > 5

			if isValid != tc.expectedValid {
				t.Errorf("Expected URL %s to be valid=%v, got valid=%v", tc.url, tc.expectedValid, isValid)
			}
		})
	}
}

func TestS3BlobStore_ErrorMessages(t *testing.T) {
	// Test various error conditions and their messages

	// Test NewS3BlobStore error messages
	_, err := NewS3BlobStore(context.Background(), "", "us-west-2")
	if err == nil {
		t.Error("Expected error for empty bucket")
	}
	if !strings.Contains(err.Error(), "bucket and region must be non-empty") {
		t.Errorf("Expected specific error message for empty bucket, got: %v", err)
	}

	_, err = NewS3BlobStore(context.Background(), "bucket", "")
	if err == nil {
		t.Error("Expected error for empty region")
	}
	if !strings.Contains(err.Error(), "bucket and region must be non-empty") {
		t.Errorf("Expected specific error message for empty region, got: %v", err)
	}

	// Note: Get's bucket mismatch error is exercised in TestS3BlobStore_URLParsing;
	// this test covers the constructor's validation errors
}
