// Package sefaz implements manifest.SefazGateway.
//
// SimulatedGateway stands in for the tax authority web services: it keeps
// authorized manifests in memory, hands out deterministic protocol numbers
// and applies a small set of configurable rejection rules. Calls are
// throttled per UF and observed through a metrics sink.
//
// It is meant for development and homologation. Its memory does not
// survive a restart, so the server calls Restore with the manifests the
// database already holds as authorized.
package sefaz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SEFAZ answers produced by the simulator
const (
	CodeCancelled        = "101"
	CodeClosed           = "132"
	CodeNotFound         = "217"
	CodeAlreadyCancelled = "218"
	CodeProtocolMismatch = "222"
	CodeUFBlocked        = "999"
	CodeAlreadyClosed    = "609"
	CodeInvalidStatus    = "631"
)

var reasons = map[string]string{
	manifest.CodeAuthorized:       "Autorizado o uso do MDF-e",
	manifest.CodeServiceRunning:   "Servico em Operacao",
	manifest.CodeEventRegistered:  "Evento registrado e vinculado a MDF-e",
	manifest.CodeDuplicateKey:     "Rejeicao: Duplicidade de MDF-e",
	manifest.CodeCargoValueAbsent: "Rejeicao: Valor total da carga nao informado",
	CodeCancelled:                 "Cancelamento de MDF-e homologado",
	CodeClosed:                    "Encerramento de MDF-e homologado",
	CodeNotFound:                  "Rejeicao: MDF-e nao consta na base de dados da SEFAZ",
	CodeAlreadyCancelled:          "Rejeicao: MDF-e ja esta cancelado",
	CodeProtocolMismatch:          "Rejeicao: Protocolo de autorizacao difere do cadastrado",
	CodeUFBlocked:                 "Rejeicao: UF de inicio bloqueada no ambiente simulado",
	CodeAlreadyClosed:             "Rejeicao: MDF-e encerrado",
	CodeInvalidStatus:             "Rejeicao: Situacao do MDF-e nao permite o evento",
}

// Reason returns the SEFAZ message for a status code
func Reason(code string) string {
	if r, ok := reasons[code]; ok {
		return r
	}
	return "Codigo " + code
}

// Observer records SEFAZ call metrics
type Observer interface {
	ObserveSefaz(operation, uf, code string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveSefaz(string, string, string, time.Duration) {}

type record struct {
	status   manifest.Status
	protocol string
	drivers  []string
}

// SimulatedGateway is an in-memory SEFAZ
type SimulatedGateway struct {
	cfg       config.SefazConfig
	rejectUFs map[string]struct{}
	logger    *zap.Logger
	observer  Observer
	now       func() time.Time

	limMu    sync.Mutex
	limiters map[valueobject.UF]*rate.Limiter

	mu        sync.Mutex
	sequence  uint64
	manifests map[string]*record
}

// Option configures SimulatedGateway
type Option func(*SimulatedGateway)

func WithLogger(logger *zap.Logger) Option {
	return func(g *SimulatedGateway) {
		g.logger = logger
	}
}

func WithObserver(o Observer) Option {
	return func(g *SimulatedGateway) {
		if o != nil {
			g.observer = o
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(g *SimulatedGateway) {
		g.now = now
	}
}

// NewSimulatedGateway creates the simulator from the sefaz config section
func NewSimulatedGateway(cfg config.SefazConfig, opts ...Option) *SimulatedGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	g := &SimulatedGateway{
		cfg:       cfg,
		rejectUFs: make(map[string]struct{}, len(cfg.RejectUFs)),
		logger:    zap.NewNop(),
		observer:  nopObserver{},
		now:       time.Now,
		limiters:  make(map[valueobject.UF]*rate.Limiter),
		manifests: make(map[string]*record),
	}
	for _, uf := range cfg.RejectUFs {
		g.rejectUFs[strings.ToUpper(strings.TrimSpace(uf))] = struct{}{}
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("sefaz")
	return g
}

func (g *SimulatedGateway) limiter(uf valueobject.UF) *rate.Limiter {
	g.limMu.Lock()
	defer g.limMu.Unlock()
	l, ok := g.limiters[uf]
	if !ok {
		l = rate.NewLimiter(rate.Limit(g.cfg.RateLimit), g.cfg.Burst)
		g.limiters[uf] = l
	}
	return l
}

// call throttles and times one web service request
func (g *SimulatedGateway) call(ctx context.Context, op string, uf valueobject.UF, key string, fn func() string) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if err := g.limiter(uf).Wait(ctx); err != nil {
		g.observer.ObserveSefaz(op, uf.String(), "timeout", time.Since(start))
		g.logger.Warn("SEFAZ request not sent",
			zap.String("operation", op),
			zap.String("uf", uf.String()),
			zap.String("access_key", key),
			zap.Error(err))
		return "", fmt.Errorf("%w: %s %s: %v", manifest.ErrGatewayUnavailable, op, uf, err)
	}

	code := fn()
	elapsed := time.Since(start)
	g.observer.ObserveSefaz(op, uf.String(), code, elapsed)
	g.logger.Info("SEFAZ request",
		zap.String("operation", op),
		zap.String("uf", uf.String()),
		zap.String("access_key", key),
		zap.String("code", code),
		zap.Duration("duration", elapsed))
	return code, nil
}

// nextProtocol returns <cUF><yy><13 digit sequence>. Callers hold g.mu.
func (g *SimulatedGateway) nextProtocol(uf valueobject.UF) string {
	g.sequence++
	return fmt.Sprintf("%02d%s%013d", uf.Code(), g.now().Format("06"), g.sequence)
}

// AuthorizedSource lists manifests already authorized, oldest first
type AuthorizedSource interface {
	FindAuthorizedBefore(ctx context.Context, before time.Time, limit int) ([]manifest.Manifest, error)
}

// Restore loads up to limit authorized manifests from src so events on
// them are accepted after a restart. The protocol counter resumes past
// the highest restored protocol.
func (g *SimulatedGateway) Restore(ctx context.Context, src AuthorizedSource, limit int) (int, error) {
	items, err := src.FindAuthorizedBefore(ctx, g.now(), limit)
	if err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	restored := 0
	for i := range items {
		m := &items[i]
		if m.AccessKey == "" || m.Protocol == "" {
			continue
		}
		if _, known := g.manifests[m.AccessKey]; known {
			continue
		}
		g.manifests[m.AccessKey] = &record{status: m.Status, protocol: m.Protocol}
		if seq, ok := protocolSequence(m.Protocol); ok && seq > g.sequence {
			g.sequence = seq
		}
		restored++
	}
	if len(items) == limit {
		g.logger.Warn("SEFAZ simulator restore hit its limit",
			zap.Int("limit", limit))
	}
	return restored, nil
}

// protocolSequence reads the counter from the last 13 digits of a
// protocol built by nextProtocol
func protocolSequence(protocol string) (uint64, bool) {
	if len(protocol) < 13 {
		return 0, false
	}
	seq, err := strconv.ParseUint(protocol[len(protocol)-13:], 10, 64)
	return seq, err == nil
}

func keyUF(accessKey string) (valueobject.UF, error) {
	key, err := valueobject.ParseAccessKey(accessKey)
	if err != nil {
		return "", err
	}
	return key.UF(), nil
}

func (g *SimulatedGateway) Authorize(ctx context.Context, env manifest.Envelope) (manifest.Receipt, error) {
	if len(env.XML) == 0 {
		return manifest.Receipt{}, errors.New("envelope has no XML")
	}
	if _, err := keyUF(env.AccessKey); err != nil {
		return manifest.Receipt{}, err
	}

	var receipt manifest.Receipt
	_, err := g.call(ctx, "authorize", env.UF, env.AccessKey, func() string {
		g.mu.Lock()
		defer g.mu.Unlock()
		receipt = g.authorize(env)
		return receipt.Code
	})
	return receipt, err
}

func (g *SimulatedGateway) authorize(env manifest.Envelope) manifest.Receipt {
	now := g.now()
	reject := func(code string) manifest.Receipt {
		return manifest.Receipt{Code: code, Reason: Reason(code), ReceivedAt: now}
	}

	if rec, ok := g.manifests[env.AccessKey]; ok {
		// the original protocol is returned so a lost answer can be recovered
		r := reject(manifest.CodeDuplicateKey)
		r.Protocol = rec.protocol
		return r
	}
	if _, blocked := g.rejectUFs[env.UF.String()]; blocked {
		return reject(CodeUFBlocked)
	}
	if g.cfg.RejectZeroCargoValue && env.Environment == identity.EnvironmentHomologation && !env.CargoValue.IsPositive() {
		return reject(manifest.CodeCargoValueAbsent)
	}

	protocol := g.nextProtocol(env.UF)
	g.manifests[env.AccessKey] = &record{status: manifest.StatusAuthorized, protocol: protocol}
	return manifest.Receipt{
		Authorized: true,
		Code:       manifest.CodeAuthorized,
		Reason:     Reason(manifest.CodeAuthorized),
		Protocol:   protocol,
		ReceivedAt: now,
	}
}

// event validates an event against the stored manifest and applies it.
// Callers hold g.mu.
func (g *SimulatedGateway) event(accessKey, protocol string, uf valueobject.UF, apply func(*record) string) manifest.EventReceipt {
	now := g.now()
	answer := func(code, prot string) manifest.EventReceipt {
		return manifest.EventReceipt{Code: code, Reason: Reason(code), Protocol: prot, ReceivedAt: now}
	}

	rec, ok := g.manifests[accessKey]
	switch {
	case !ok:
		return answer(CodeNotFound, "")
	case rec.protocol != protocol:
		return answer(CodeProtocolMismatch, "")
	case rec.status == manifest.StatusCancelled:
		return answer(CodeAlreadyCancelled, "")
	case rec.status == manifest.StatusClosed:
		return answer(CodeAlreadyClosed, "")
	}
	if code := apply(rec); code != "" {
		return answer(code, "")
	}
	return answer(manifest.CodeEventRegistered, g.nextProtocol(uf))
}

func (g *SimulatedGateway) Cancel(ctx context.Context, accessKey, protocol, justification string) (manifest.EventReceipt, error) {
	uf, err := keyUF(accessKey)
	if err != nil {
		return manifest.EventReceipt{}, err
	}
	if _, err := manifest.NormalizeJustification(justification); err != nil {
		return manifest.EventReceipt{}, err
	}

	var receipt manifest.EventReceipt
	_, err = g.call(ctx, "cancel", uf, accessKey, func() string {
		g.mu.Lock()
		defer g.mu.Unlock()
		receipt = g.event(accessKey, protocol, uf, func(r *record) string {
			r.status = manifest.StatusCancelled
			return ""
		})
		return receipt.Code
	})
	return receipt, err
}

func (g *SimulatedGateway) Close(ctx context.Context, accessKey, protocol string, closure manifest.Closure) (manifest.EventReceipt, error) {
	uf, err := keyUF(accessKey)
	if err != nil {
		return manifest.EventReceipt{}, err
	}
	if closure.Municipality.IsZero() {
		return manifest.EventReceipt{}, errors.New("closure municipality is required")
	}

	var receipt manifest.EventReceipt
	_, err = g.call(ctx, "close", uf, accessKey, func() string {
		g.mu.Lock()
		defer g.mu.Unlock()
		receipt = g.event(accessKey, protocol, uf, func(r *record) string {
			r.status = manifest.StatusClosed
			return ""
		})
		return receipt.Code
	})
	return receipt, err
}

func (g *SimulatedGateway) IncludeDriver(ctx context.Context, accessKey, protocol string, driver manifest.DriverRef) (manifest.EventReceipt, error) {
	uf, err := keyUF(accessKey)
	if err != nil {
		return manifest.EventReceipt{}, err
	}

	var receipt manifest.EventReceipt
	_, err = g.call(ctx, "include_driver", uf, accessKey, func() string {
		g.mu.Lock()
		defer g.mu.Unlock()
		receipt = g.event(accessKey, protocol, uf, func(r *record) string {
			for _, cpf := range r.drivers {
				if cpf == driver.CPF {
					return CodeInvalidStatus
				}
			}
			r.drivers = append(r.drivers, driver.CPF)
			return ""
		})
		return receipt.Code
	})
	return receipt, err
}

func (g *SimulatedGateway) Status(ctx context.Context, accessKey string) (manifest.StatusResult, error) {
	uf, err := keyUF(accessKey)
	if err != nil {
		return manifest.StatusResult{}, err
	}

	result := manifest.StatusResult{AccessKey: accessKey}
	_, err = g.call(ctx, "status", uf, accessKey, func() string {
		g.mu.Lock()
		defer g.mu.Unlock()
		result.CheckedAt = g.now()
		rec, ok := g.manifests[accessKey]
		if !ok {
			result.Code = CodeNotFound
		} else {
			result.Status = rec.status
			result.Protocol = rec.protocol
			switch rec.status {
			case manifest.StatusCancelled:
				result.Code = CodeCancelled
			case manifest.StatusClosed:
				result.Code = CodeClosed
			default:
				result.Code = manifest.CodeAuthorized
			}
		}
		result.Reason = Reason(result.Code)
		return result.Code
	})
	return result, err
}

func (g *SimulatedGateway) ServiceStatus(ctx context.Context, uf valueobject.UF, env identity.Environment) (manifest.ServiceStatus, error) {
	if !uf.IsValid() {
		return manifest.ServiceStatus{}, fmt.Errorf("invalid UF %q", uf)
	}
	if !env.IsValid() {
		env = identity.Environment(g.cfg.Environment)
	}

	status := manifest.ServiceStatus{UF: uf, Environment: env}
	_, err := g.call(ctx, "service_status", uf, "", func() string {
		status.Code = manifest.CodeServiceRunning
		status.Reason = Reason(status.Code)
		status.CheckedAt = g.now()
		status.AvgSeconds = 1
		return status.Code
	})
	return status, err
}

var _ manifest.SefazGateway = (*SimulatedGateway)(nil)
