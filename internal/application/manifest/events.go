package manifest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/telemetry"
)

// Cancel registers the cancellation event of an authorized manifest within
// 24 hours of its authorization
func (s *ManifestService) Cancel(ctx context.Context, tenantID, manifestID uuid.UUID, req CancelManifestRequest) (*ManifestResponse, error) {
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	justification, err := manifest.NormalizeJustification(req.Justification)
	if err != nil {
		return nil, err
	}
	if err := m.CanCancel(now); err != nil {
		return nil, err
	}

	receipt, err := s.sendEvent(ctx, m, "cancel", func(c context.Context) (manifest.EventReceipt, error) {
		return s.gateway.Cancel(c, m.AccessKey, m.Protocol, justification)
	})
	if err != nil {
		return nil, err
	}
	if err := m.Cancel(justification, receipt.Protocol, now); err != nil {
		return nil, err
	}
	return s.saveEvent(ctx, m)
}

// Close registers the closure (encerramento) at the place where the trip
// ended. The date defaults to today.
func (s *ManifestService) Close(ctx context.Context, tenantID, manifestID uuid.UUID, req CloseManifestRequest) (*ManifestResponse, error) {
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	place, err := req.Municipality.ToMunicipality()
	if err != nil {
		return nil, err
	}
	now := s.now()
	date := now
	if req.Date != nil {
		date = *req.Date
	}
	if err := m.CanClose(place, date, now); err != nil {
		return nil, err
	}

	receipt, err := s.sendEvent(ctx, m, "close", func(c context.Context) (manifest.EventReceipt, error) {
		return s.gateway.Close(c, m.AccessKey, m.Protocol, manifest.Closure{Municipality: place, Date: date})
	})
	if err != nil {
		return nil, err
	}
	if err := m.Close(place, date, receipt.Protocol, now); err != nil {
		return nil, err
	}
	return s.saveEvent(ctx, m)
}

// IncludeDriver registers a new driver on an authorized manifest
func (s *ManifestService) IncludeDriver(ctx context.Context, tenantID, manifestID uuid.UUID, req IncludeDriverRequest) (*ManifestResponse, error) {
	m, err := s.load(ctx, tenantID, manifestID)
	if err != nil {
		return nil, err
	}
	driver, err := s.driverRepo.FindByID(ctx, tenantID, req.DriverID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("DRIVER_NOT_FOUND", "Driver not found")
		}
		return nil, err
	}
	now := s.now()
	if err := driver.CanDrive(now); err != nil {
		return nil, err
	}
	ref := driverRef(driver)
	if err := m.CanIncludeDriver(ref); err != nil {
		return nil, err
	}

	receipt, err := s.sendEvent(ctx, m, "include_driver", func(c context.Context) (manifest.EventReceipt, error) {
		return s.gateway.IncludeDriver(c, m.AccessKey, m.Protocol, ref)
	})
	if err != nil {
		return nil, err
	}
	at := receipt.ReceivedAt
	if at.IsZero() {
		at = now
	}
	if err := m.IncludeDriver(ref, receipt.Protocol, at); err != nil {
		return nil, err
	}
	return s.saveEvent(ctx, m)
}

// sendEvent calls SEFAZ for an event and turns a refusal into an error.
// Nothing is stored when SEFAZ does not register the event.
func (s *ManifestService) sendEvent(ctx context.Context, m *manifest.Manifest, operation string, call func(context.Context) (manifest.EventReceipt, error)) (receipt manifest.EventReceipt, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ManifestService", operation,
		telemetry.WithAttributes(
			telemetry.AttrTenantID.String(m.TenantID.String()),
			telemetry.AttrManifestID.String(m.ID.String()),
			telemetry.AttrAccessKey.String(m.AccessKey),
		))
	defer span.End()

	telemetry.WithProfilingLabels(ctx, telemetry.ManifestOperationLabels(telemetry.OperationManifestEvent, m.TenantID.String()), func(c context.Context) {
		started := time.Now()
		receipt, err = call(c)
		s.observeSefaz(c, operation, time.Since(started))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return receipt, err
	}
	telemetry.SetAttributes(span, string(telemetry.AttrSefazCode), receipt.Code)
	if !receipt.Registered() {
		err = shared.NewDomainError("SEFAZ_EVENT_REJECTED", "SEFAZ rejected the event: "+receipt.Code+" - "+receipt.Reason)
		telemetry.RecordError(span, err)
		return receipt, err
	}
	telemetry.SetOK(span)
	return receipt, nil
}

func (s *ManifestService) saveEvent(ctx context.Context, m *manifest.Manifest) (*ManifestResponse, error) {
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	s.afterSave(ctx, m)
	response := ToManifestResponse(m)
	return &response, nil
}
