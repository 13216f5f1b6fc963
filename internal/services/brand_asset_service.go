package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"coachhub/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AssetKind string

const (
	AssetLogo    AssetKind = "logo"
	AssetFavicon AssetKind = "favicon"
)

// MaxBrandAssetSize caps logo and favicon uploads.
const MaxBrandAssetSize = 2 << 20

var assetExtensions = map[string]string{
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/svg+xml":            ".svg",
	"image/webp":               ".webp",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
}

// BrandAssetService stores tenant logos and favicons and points the tenant at them.
type BrandAssetService interface {
	Upload(ctx context.Context, tenantID uuid.UUID, kind AssetKind, contentType string, reader io.Reader, size int64) (*models.Tenant, error)
}

type brandAssetService struct {
	store   MinioService
	tenants TenantService
	bucket  string
	log     *zap.Logger
}

func NewBrandAssetService(store MinioService, tenants TenantService, bucket string, log *zap.Logger) BrandAssetService {
	return &brandAssetService{store: store, tenants: tenants, bucket: bucket, log: log}
}

// AssetObjectName is the object key for a tenant's asset. Keys are stable per kind so a new
// upload replaces the old object.
func AssetObjectName(tenantID uuid.UUID, kind AssetKind, ext string) string {
	return path.Join("tenants", tenantID.String(), string(kind)+ext)
}

func (s *brandAssetService) Upload(ctx context.Context, tenantID uuid.UUID, kind AssetKind, contentType string,
	reader io.Reader, size int64) (*models.Tenant, error) {
	if kind != AssetLogo && kind != AssetFavicon {
		return nil, ErrUnsupportedAsset
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := assetExtensions[contentType]
	if !ok || size <= 0 || size > MaxBrandAssetSize {
		return nil, ErrUnsupportedAsset
	}

	existing, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var previousURL string
	switch {
	case kind == AssetLogo && existing.LogoURL != nil:
		previousURL = *existing.LogoURL
	case kind == AssetFavicon && existing.FaviconURL != nil:
		previousURL = *existing.FaviconURL
	}

	objectName := AssetObjectName(tenantID, kind, ext)
	if err := s.store.UploadObject(ctx, s.bucket, objectName, reader, size, contentType); err != nil {
		return nil, fmt.Errorf("store %s: %w", kind, err)
	}
	assetURL := s.store.ObjectURL(s.bucket, objectName)

	req := &UpdateTenantRequest{}
	switch kind {
	case AssetLogo:
		req.LogoURL = &assetURL
	case AssetFavicon:
		req.FaviconURL = &assetURL
	}
	tenant, err := s.tenants.Update(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}
	if previousURL != "" && previousURL != assetURL {
		s.removeReplaced(ctx, tenantID, previousURL)
	}
	s.log.Info("brand asset uploaded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("kind", string(kind)),
		zap.String("object", objectName),
	)
	return tenant, nil
}

// removeReplaced deletes the object a previous upload left behind under another extension.
// URLs outside this tenant's prefix are left alone.
func (s *brandAssetService) removeReplaced(ctx context.Context, tenantID uuid.UUID, previousURL string) {
	marker := "/" + s.bucket + "/"
	i := strings.Index(previousURL, marker)
	if i < 0 {
		return
	}
	objectName := previousURL[i+len(marker):]
	if !strings.HasPrefix(objectName, path.Join("tenants", tenantID.String())+"/") {
		return
	}
	if err := s.store.DeleteObject(ctx, s.bucket, objectName); err != nil {
		s.log.Warn("removing replaced brand asset failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("object", objectName),
			zap.Error(err),
		)
	}
}
