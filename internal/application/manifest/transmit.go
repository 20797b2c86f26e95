package manifest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Transmission outcomes recorded on spans and counters
const (
	outcomeAuthorized  = "authorized"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
	outcomeFailed      = "failed"
)

// Transmit numbers a draft on its first transmission and sends it to
// SEFAZ. A repeated idempotency key returns the current state of the
// manifest instead of sending it again. When SEFAZ cannot be reached the
// manifest stays pending and the background job retries it.
func (s *ManifestService) Transmit(ctx context.Context, tenantID, manifestID uuid.UUID, idempotencyKey string) (result *TransmitResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ManifestService", "Transmit",
		telemetry.WithAttributes(
			telemetry.AttrTenantID.String(tenantID.String()),
			telemetry.AttrManifestID.String(manifestID.String()),
		))
	defer span.End()
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
			return
		}
		telemetry.SetAttributes(span, string(telemetry.AttrAccessKey), result.Manifest.AccessKey,
			string(telemetry.AttrSefazCode), result.Code)
		telemetry.SetOK(span)
	}()

	if idempotencyKey != "" && s.idempotency != nil {
		key := transmitKeyPrefix + tenantID.String() + ":" + idempotencyKey
		existing, claimed, claimErr := s.idempotency.Claim(ctx, key, manifestID.String(), s.idempotencyTTL)
		if claimErr != nil {
			return nil, claimErr
		}
		if !claimed {
			return s.replay(ctx, tenantID, manifestID, existing)
		}
		defer func() {
			if err == nil {
				return
			}
			if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
				s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(releaseErr))
			}
		}()
	}

	telemetry.WithProfilingLabels(ctx, telemetry.ManifestOperationLabels(telemetry.OperationTransmit, tenantID.String()), func(c context.Context) {
		result, err = s.transmit(c, tenantID, manifestID)
	})
	return result, err
}

func (s *ManifestService) replay(ctx context.Context, tenantID, manifestID uuid.UUID, claimedFor string) (*TransmitResult, error) {
	if claimedFor != manifestID.String() {
		return nil, shared.NewDomainError("IDEMPOTENCY_KEY_REUSED", "Idempotency key was already used for another manifest")
	}
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	res := resultOf(m)
	res.Replayed = true
	return res, nil
}

func (s *ManifestService) transmit(ctx context.Context, tenantID, manifestID uuid.UUID) (*TransmitResult, error) {
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	tenant, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := tenant.CanIssue(); err != nil {
		return nil, err
	}
	if err := m.ValidateForTransmission(); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.checkParticipants(ctx, m, now); err != nil {
		return nil, err
	}
	open, err := s.repo.ExistsOpen(ctx, manifest.OpenManifestQuery{
		TenantID:  tenantID,
		VehicleID: m.Vehicle.VehicleID,
		StartUF:   m.StartUF,
		EndUF:     m.EndUF,
		ExcludeID: m.ID,
	})
	if err != nil {
		return nil, err
	}
	if open {
		return nil, shared.NewDomainError("DUPLICATE_OPEN_MANIFEST",
			"Vehicle "+m.Vehicle.Plate+" already has an open manifest from "+m.StartUF+" to "+m.EndUF)
	}

	// The number and key are stored before SEFAZ is called so a crash
	// cannot lose them.
	if m.HasNumber() {
		if err := m.Submit(now); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, m); err != nil {
			return nil, err
		}
	} else {
		err := s.repo.SaveNumbered(ctx, m, tenant.Series, func(number int) error {
			code, err := manifest.NewNumericCode(number)
			if err != nil {
				return err
			}
			if err := m.AssignNumber(manifest.Numbering{
				Series:      tenant.Series,
				Number:      number,
				IssuerCNPJ:  tenant.CNPJ,
				IssuedAt:    now,
				NumericCode: code,
			}); err != nil {
				return err
			}
			return m.Submit(now)
		})
		if err != nil {
			return nil, err
		}
	}
	s.afterSave(ctx, m)

	return s.send(ctx, m, tenant)
}

// send submits a pending manifest and applies the SEFAZ answer
func (s *ManifestService) send(ctx context.Context, m *manifest.Manifest, tenant *identity.Tenant) (*TransmitResult, error) {
	env, err := manifest.BuildEnvelope(m, manifest.IssuerOf(tenant))
	if err != nil {
		return nil, err
	}

	started := time.Now()
	receipt, err := s.gateway.Authorize(ctx, env)
	s.observeSefaz(ctx, "authorize", time.Since(started))
	if err != nil {
		if errors.Is(err, manifest.ErrGatewayUnavailable) {
			s.logger.Warn("SEFAZ unavailable, manifest left pending",
				zap.String("manifest_id", m.ID.String()),
				zap.String("access_key", m.AccessKey),
				zap.Error(err))
			s.recordTransmission(ctx, m, outcomeUnavailable)
			res := resultOf(m)
			res.Code = manifest.ErrGatewayUnavailable.Code
			res.Reason = manifest.ErrGatewayUnavailable.Message
			return res, nil
		}
		s.recordTransmission(ctx, m, outcomeFailed)
		return nil, err
	}

	at := receipt.ReceivedAt
	if at.IsZero() {
		at = s.now()
	}
	outcome := outcomeAuthorized
	switch {
	case receipt.Authorized:
		err = m.Authorize(receipt.Protocol, at)
	case receipt.Code == manifest.CodeDuplicateKey && receipt.Protocol != "":
		// SEFAZ already authorized this key on an earlier attempt
		err = m.Authorize(receipt.Protocol, at)
	default:
		outcome = outcomeRejected
		err = m.Reject(receipt.Code, receipt.Reason, at)
	}
	if err != nil {
		return nil, err
	}
	if m.Status == manifest.StatusAuthorized {
		s.archiveXML(ctx, m, env.XML)
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	s.afterSave(ctx, m)
	s.recordTransmission(ctx, m, outcome)

	s.logger.Info("manifest transmitted",
		zap.String("manifest_id", m.ID.String()),
		zap.String("access_key", m.AccessKey),
		zap.String("status", string(m.Status)),
		zap.String("sefaz_code", receipt.Code))

	res := resultOf(m)
	res.Code = receipt.Code
	res.Reason = receipt.Reason
	return res, nil
}

// RetryPending resends manifests left pending before olderThan. It returns
// how many got a final answer from SEFAZ.
func (s *ManifestService) RetryPending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	pending, err := s.repo.FindPendingBefore(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	telemetry.WithProfilingLabels(ctx, telemetry.ManifestOperationLabels(telemetry.OperationRetryPending, ""), func(c context.Context) {
		for i := range pending {
			if c.Err() != nil {
				return
			}
			m := &pending[i]
			tenant, err := s.tenantRepo.FindByID(c, m.TenantID)
			if err != nil {
				s.logger.Warn("tenant of pending manifest not loaded",
					zap.String("manifest_id", m.ID.String()), zap.Error(err))
				continue
			}
			res, err := s.send(c, m, tenant)
			if err != nil {
				s.logger.Warn("pending manifest retry failed",
					zap.String("manifest_id", m.ID.String()), zap.Error(err))
				continue
			}
			if !res.Pending() {
				settled++
			}
		}
	})
	return settled, ctx.Err()
}

// Consult asks SEFAZ for the situation of a numbered manifest. A local
// pending manifest that SEFAZ reports as authorized is reconciled.
func (s *ManifestService) Consult(ctx context.Context, tenantID, manifestID uuid.UUID) (*ConsultResponse, error) {
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	if !m.HasNumber() {
		return nil, shared.NewDomainError("NOT_NUMBERED", "Manifest was never transmitted")
	}

	started := time.Now()
	status, err := s.gateway.Status(ctx, m.AccessKey)
	s.observeSefaz(ctx, "status", time.Since(started))
	if err != nil {
		return nil, err
	}

	resp := &ConsultResponse{
		AccessKey:   m.AccessKey,
		Code:        status.Code,
		Reason:      status.Reason,
		SefazStatus: string(status.Status),
		Protocol:    status.Protocol,
		CheckedAt:   status.CheckedAt,
	}
	if m.Status == manifest.StatusPending && status.Status == manifest.StatusAuthorized && status.Protocol != "" {
		if err := s.reconcile(ctx, m, status); err != nil {
			return nil, err
		}
		resp.Reconciled = true
	}
	resp.LocalStatus = string(m.Status)
	return resp, nil
}

func (s *ManifestService) reconcile(ctx context.Context, m *manifest.Manifest, status manifest.StatusResult) error {
	at := status.CheckedAt
	if at.IsZero() {
		at = s.now()
	}
	if err := m.Authorize(status.Protocol, at); err != nil {
		return err
	}
	if tenant, err := s.tenantRepo.FindByID(ctx, m.TenantID); err == nil {
		if env, err := manifest.BuildEnvelope(m, manifest.IssuerOf(tenant)); err == nil {
			s.archiveXML(ctx, m, env.XML)
		}
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return err
	}
	s.afterSave(ctx, m)
	return nil
}

// archiveXML stores the authorized XML. Failures are only logged;
// DownloadXML rebuilds the document when the archive is missing.
func (s *ManifestService) archiveXML(ctx context.Context, m *manifest.Manifest, xml []byte) {
	if s.store == nil {
		return
	}
	key := manifest.XMLObjectKey(m)
	if err := s.store.Put(ctx, key, xml, "application/xml"); err != nil {
		s.logger.Warn("failed to archive manifest XML",
			zap.String("manifest_id", m.ID.String()),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	m.SetXMLObjectKey(key)
}

func (s *ManifestService) recordTransmission(ctx context.Context, m *manifest.Manifest, outcome string) {
	if s.instruments != nil {
		s.instruments.Transmission(ctx, m.TenantID.String(), outcome)
	}
}

func resultOf(m *manifest.Manifest) *TransmitResult {
	res := &TransmitResult{Manifest: ToManifestResponse(m)}
	switch m.Status {
	case manifest.StatusRejected:
		res.Code = m.RejectionCode
		res.Reason = m.RejectionReason
	case manifest.StatusAuthorized, manifest.StatusClosed, manifest.StatusCancelled:
		res.Code = manifest.CodeAuthorized
	}
	return res
}
