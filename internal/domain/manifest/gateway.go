package manifest

import (
	"context"
	"time"

	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// SEFAZ status codes the application reacts to
const (
	CodeAuthorized       = "100"
	CodeServiceRunning   = "107"
	CodeEventRegistered  = "135"
	CodeDuplicateKey     = "204"
	CodeCargoValueAbsent = "629"
)

// ErrGatewayUnavailable is returned when SEFAZ cannot be reached in time.
// The manifest stays pending and is retried later.
var ErrGatewayUnavailable = shared.NewDomainError("SEFAZ_UNAVAILABLE", "SEFAZ service is unavailable")

// Envelope is the signed-for-transmission form of a manifest
type Envelope struct {
	AccessKey   string
	UF          valueobject.UF
	Environment identity.Environment
	CargoValue  decimal.Decimal
	XML         []byte
}

// Receipt is the SEFAZ answer to an authorization request
type Receipt struct {
	Authorized bool
	Code       string
	Reason     string
	Protocol   string
	ReceivedAt time.Time
}

// EventReceipt is the SEFAZ answer to an event (cancel, close, driver)
type EventReceipt struct {
	Code       string
	Reason     string
	Protocol   string
	ReceivedAt time.Time
}

// Registered reports whether SEFAZ accepted the event
func (r EventReceipt) Registered() bool {
	return r.Code == CodeEventRegistered
}

// StatusResult is the SEFAZ view of a manifest (consulta situacao)
type StatusResult struct {
	AccessKey string
	Code      string
	Reason    string
	Status    Status
	Protocol  string
	CheckedAt time.Time
}

// ServiceStatus is the SEFAZ web service health for a UF
type ServiceStatus struct {
	UF          valueobject.UF
	Environment identity.Environment
	Code        string
	Reason      string
	CheckedAt   time.Time
	AvgSeconds  int
}

// Closure carries the data of an encerramento event
type Closure struct {
	Municipality valueobject.Municipality
	Date         time.Time
}

// SefazGateway is the port to the tax authority web services
type SefazGateway interface {
	Authorize(ctx context.Context, env Envelope) (Receipt, error)
	Cancel(ctx context.Context, accessKey, protocol, justification string) (EventReceipt, error)
	Close(ctx context.Context, accessKey, protocol string, closure Closure) (EventReceipt, error)
	IncludeDriver(ctx context.Context, accessKey, protocol string, driver DriverRef) (EventReceipt, error)
	Status(ctx context.Context, accessKey string) (StatusResult, error)
	ServiceStatus(ctx context.Context, uf valueobject.UF, env identity.Environment) (ServiceStatus, error)
}
