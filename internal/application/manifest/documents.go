package manifest

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/storage"
	"github.com/mdfe/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RenderDAMDFE renders the auxiliary document of an authorized manifest.
// With an object store the PDF is also archived next to the XML and a
// download link is returned.
func (s *ManifestService) RenderDAMDFE(ctx context.Context, tenantID, manifestID uuid.UUID) (*DocumentFile, error) {
	if s.renderer == nil {
		return nil, shared.NewDomainError("DAMDFE_UNAVAILABLE", "DAMDFE rendering is not configured")
	}
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	if m.Protocol == "" {
		return nil, shared.NewDomainError("NOT_AUTHORIZED", "DAMDFE is only available for authorized manifests")
	}
	tenant, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var pdf []byte
	telemetry.WithProfilingLabels(ctx, telemetry.ManifestOperationLabels(telemetry.OperationRenderDAMDFE, tenantID.String()), func(c context.Context) {
		pdf, err = s.renderer.RenderPDF(c, m, manifest.IssuerOf(tenant))
	})
	if err != nil {
		return nil, err
	}

	file := &DocumentFile{
		Filename:    m.AccessKey + "-damdfe.pdf",
		ContentType: "application/pdf",
		Data:        pdf,
	}
	if s.store == nil {
		return file, nil
	}
	key := damdfeObjectKey(m)
	if err := s.store.Put(ctx, key, pdf, file.ContentType); err != nil {
		s.logger.Warn("failed to archive DAMDFE",
			zap.String("manifest_id", m.ID.String()),
			zap.String("key", key),
			zap.Error(err))
		return file, nil
	}
	s.presign(ctx, file, key)
	return file, nil
}

// DownloadXML returns the archived XML of a numbered manifest, rebuilt
// from the stored content when the archive is missing
func (s *ManifestService) DownloadXML(ctx context.Context, tenantID, manifestID uuid.UUID) (*DocumentFile, error) {
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	if m.XMLObjectKey != "" && s.store != nil {
		data, err := s.store.Get(ctx, m.XMLObjectKey)
		switch {
		case err == nil:
			file := xmlFile(m, data)
			s.presign(ctx, file, m.XMLObjectKey)
			return file, nil
		case !errors.Is(err, storage.ErrObjectNotFound):
			return nil, err
		}
	}
	return s.rebuildXML(ctx, m)
}

// rebuildXML regenerates the XML of a numbered manifest whose archive is
// missing; the content is the one sent to SEFAZ
func (s *ManifestService) rebuildXML(ctx context.Context, m *manifest.Manifest) (*DocumentFile, error) {
	if !m.HasNumber() {
		return nil, shared.NewDomainError("XML_NOT_AVAILABLE", "No archived XML for this manifest")
	}
	tenant, err := s.loadTenant(ctx, m.TenantID)
	if err != nil {
		return nil, err
	}
	env, err := manifest.BuildEnvelope(m, manifest.IssuerOf(tenant))
	if err != nil {
		return nil, err
	}
	s.logger.Info("serving rebuilt manifest XML",
		zap.String("manifest_id", m.ID.String()),
		zap.String("access_key", m.AccessKey))
	return xmlFile(m, env.XML), nil
}

func xmlFile(m *manifest.Manifest, data []byte) *DocumentFile {
	return &DocumentFile{
		Filename:    m.AccessKey + "-mdfe.xml",
		ContentType: "application/xml",
		Data:        data,
	}
}

func (s *ManifestService) presign(ctx context.Context, file *DocumentFile, key string) {
	url, expires, err := s.store.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		s.logger.Debug("presign failed", zap.String("key", key), zap.Error(err))
		return
	}
	file.URL = url
	file.ExpiresAt = &expires
}

// damdfeObjectKey stores the PDF next to the XML:
// <tenant>/<yyyy>/<mm>/<key>-damdfe.pdf
func damdfeObjectKey(m *manifest.Manifest) string {
	return strings.TrimSuffix(manifest.XMLObjectKey(m), "-mdfe.xml") + "-damdfe.pdf"
}
