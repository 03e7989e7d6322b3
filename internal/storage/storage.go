// Package storage holds generated invoice PDFs and business logos.
//
// Two providers implement Storage: LocalStorage for development and
// R2Storage (S3-compatible) for production.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage is the object store used for invoice PDFs and logos.
type Storage interface {
	// Put stores data at key. Fails with ErrKeyExists unless opts.Overwrite.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get returns the object body (caller closes) and its metadata.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns a public URL, or a presigned one valid for expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	Exists(ctx context.Context, key string) (bool, error)

	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	ContentType string
	MaxSize     int64 // 0 means unlimited
	Overwrite   bool
	Public      bool // R2 only: public-read ACL
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's custom domain. Empty means presigned URLs only.
	PublicURL string

	// Region defaults to "auto".
	Region string

	// Endpoint overrides the account endpoint and switches to path-style
	// addressing. Used for MinIO and other S3-compatible gateways.
	Endpoint string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	Local    LocalConfig
	R2       R2Config
}

// New builds the configured provider.
func New(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case ProviderLocal:
		return NewLocalStorage(cfg.Local, logger)
	case ProviderR2:
		return NewR2Storage(cfg.R2, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider: %q", cfg.Provider)
	}
}

// =============================================================================
// Key Generation Helpers
// =============================================================================

const (
	// InvoicePrefix is the key prefix shared by every invoice PDF.
	InvoicePrefix = "invoices/"

	// LogoPrefix is the key prefix shared by every business logo.
	LogoPrefix = "logos/"
)

// InvoicePDFKey returns a fresh key for an invoice PDF.
// Format: invoices/{businessID}/{invoiceID}-{uuid}.pdf
func InvoicePDFKey(businessID, invoiceID uuid.UUID) string {
	return fmt.Sprintf("%s%s/%s-%s.pdf", InvoicePrefix, businessID, invoiceID, uuid.New())
}

// LogoKey returns a fresh key for a business logo.
// Format: logos/{businessID}/{uuid}.png
func LogoKey(businessID uuid.UUID) string {
	return fmt.Sprintf("%s%s/%s.png", LogoPrefix, businessID, uuid.New())
}

// BusinessPrefix returns the invoice prefix for one business.
func BusinessPrefix(businessID uuid.UUID) string {
	return InvoicePrefix + businessID.String() + "/"
}

// BusinessPrefixes returns every prefix holding objects of one business.
func BusinessPrefixes(businessID uuid.UUID) []string {
	return []string{
		BusinessPrefix(businessID),
		LogoPrefix + businessID.String() + "/",
	}
}

// readLimited reads all of r, failing with ErrTooLarge past max bytes.
// A max of 0 means unlimited.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > max {
		return nil, ErrTooLarge
	}
	return body, nil
}

// validateKey rejects empty keys and path traversal.
func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
