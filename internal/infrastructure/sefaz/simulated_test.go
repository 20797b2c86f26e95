package sefaz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordedCall struct {
	op, uf, code string
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeObserver) ObserveSefaz(op, uf, code string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{op, uf, code})
}

var fixedNow = time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC)

func newGateway(cfg config.SefazConfig, opts ...Option) *SimulatedGateway {
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1000
		cfg.Burst = 100
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewSimulatedGateway(cfg, opts...)
}

func envelope(t *testing.T, uf valueobject.UF, number int, env identity.Environment, value string) manifest.Envelope {
	t.Helper()
	key, err := valueobject.NewAccessKey(valueobject.AccessKeyParts{
		UF: uf, IssuedAt: fixedNow, IssuerCNPJ: "11222333000181",
		Model: valueobject.ModelMDFe, Series: 1, Number: number, EmissionType: 1, Code: 1234,
	})
	require.NoError(t, err)
	return manifest.Envelope{
		AccessKey:   key.String(),
		UF:          uf,
		Environment: env,
		CargoValue:  decimal.RequireFromString(value),
		XML:         []byte("<mdfe/>"),
	}
}

func TestAuthorize_DeterministicProtocols(t *testing.T) {
	obs := &fakeObserver{}
	core, logs := observer.New(zapcore.InfoLevel)
	g := newGateway(config.SefazConfig{}, WithObserver(obs), WithLogger(zap.New(core)))
	ctx := context.Background()

	first, err := g.Authorize(ctx, envelope(t, "SP", 1, identity.EnvironmentProduction, "100"))
	require.NoError(t, err)
	second, err := g.Authorize(ctx, envelope(t, "SP", 2, identity.EnvironmentProduction, "100"))
	require.NoError(t, err)

	assert.True(t, first.Authorized)
	assert.Equal(t, manifest.CodeAuthorized, first.Code)
	assert.Equal(t, "35240000000000001", first.Protocol)
	assert.Equal(t, "35240000000000002", second.Protocol)
	assert.Equal(t, fixedNow, first.ReceivedAt)

	require.Len(t, obs.calls, 2)
	assert.Equal(t, recordedCall{"authorize", "SP", "100"}, obs.calls[0])
	assert.Equal(t, 2, logs.FilterMessage("SEFAZ request").Len())
}

func TestAuthorize_DuplicateReturnsOriginalProtocol(t *testing.T) {
	g := newGateway(config.SefazConfig{})
	env := envelope(t, "PR", 9, identity.EnvironmentProduction, "100")

	first, err := g.Authorize(context.Background(), env)
	require.NoError(t, err)
	dup, err := g.Authorize(context.Background(), env)
	require.NoError(t, err)

	assert.False(t, dup.Authorized)
	assert.Equal(t, manifest.CodeDuplicateKey, dup.Code)
	assert.Equal(t, first.Protocol, dup.Protocol)
}

func TestAuthorize_RejectionRules(t *testing.T) {
	g := newGateway(config.SefazConfig{RejectZeroCargoValue: true, RejectUFs: []string{" mg "}})
	ctx := context.Background()

	r, err := g.Authorize(ctx, envelope(t, "MG", 1, identity.EnvironmentProduction, "100"))
	require.NoError(t, err)
	assert.False(t, r.Authorized)
	assert.Equal(t, CodeUFBlocked, r.Code)

	r, err = g.Authorize(ctx, envelope(t, "SP", 1, identity.EnvironmentHomologation, "0"))
	require.NoError(t, err)
	assert.Equal(t, manifest.CodeCargoValueAbsent, r.Code)
	assert.Equal(t, Reason(manifest.CodeCargoValueAbsent), r.Reason)

	r, err = g.Authorize(ctx, envelope(t, "SP", 2, identity.EnvironmentProduction, "0"))
	require.NoError(t, err)
	assert.True(t, r.Authorized, "the zero value rule only applies to homologation")
}

func TestAuthorize_InvalidInput(t *testing.T) {
	g := newGateway(config.SefazConfig{})
	env := envelope(t, "SP", 1, identity.EnvironmentProduction, "1")

	env.XML = nil
	_, err := g.Authorize(context.Background(), env)
	assert.Error(t, err)

	env.XML = []byte("<mdfe/>")
	env.AccessKey = "123"
	_, err = g.Authorize(context.Background(), env)
	assert.Error(t, err)
}

func TestAuthorize_ThrottleTimeout(t *testing.T) {
	obs := &fakeObserver{}
	g := newGateway(config.SefazConfig{RateLimit: 0.001, Burst: 1, Timeout: 20 * time.Millisecond}, WithObserver(obs))

	_, err := g.Authorize(context.Background(), envelope(t, "SP", 1, identity.EnvironmentProduction, "1"))
	require.NoError(t, err)

	_, err = g.Authorize(context.Background(), envelope(t, "SP", 2, identity.EnvironmentProduction, "1"))
	assert.True(t, errors.Is(err, manifest.ErrGatewayUnavailable))
	assert.Equal(t, "timeout", obs.calls[len(obs.calls)-1].code)

	// other UFs have their own bucket
	_, err = g.Authorize(context.Background(), envelope(t, "RJ", 1, identity.EnvironmentProduction, "1"))
	assert.NoError(t, err)
}

func TestEvents(t *testing.T) {
	g := newGateway(config.SefazConfig{})
	ctx := context.Background()
	env := envelope(t, "SP", 1, identity.EnvironmentProduction, "1")
	auth, err := g.Authorize(ctx, env)
	require.NoError(t, err)

	r, err := g.IncludeDriver(ctx, env.AccessKey, auth.Protocol, manifest.DriverRef{DriverID: uuid.New(), Name: "ANA", CPF: "52998224725"})
	require.NoError(t, err)
	assert.True(t, r.Registered())
	assert.NotEmpty(t, r.Protocol)

	r, err = g.IncludeDriver(ctx, env.AccessKey, auth.Protocol, manifest.DriverRef{Name: "ANA", CPF: "52998224725"})
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidStatus, r.Code)

	r, err = g.Cancel(ctx, env.AccessKey, "wrong", "Erro na digitacao dos dados")
	require.NoError(t, err)
	assert.Equal(t, CodeProtocolMismatch, r.Code)

	_, err = g.Cancel(ctx, env.AccessKey, auth.Protocol, "curta")
	assert.Error(t, err, "justification shorter than 15 characters")

	r, err = g.Cancel(ctx, env.AccessKey, auth.Protocol, "Erro na digitacao dos dados")
	require.NoError(t, err)
	assert.True(t, r.Registered())

	r, err = g.Cancel(ctx, env.AccessKey, auth.Protocol, "Erro na digitacao dos dados")
	require.NoError(t, err)
	assert.Equal(t, CodeAlreadyCancelled, r.Code)

	status, err := g.Status(ctx, env.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, manifest.StatusCancelled, status.Status)
	assert.Equal(t, CodeCancelled, status.Code)
	assert.Equal(t, auth.Protocol, status.Protocol)
}

func TestClose(t *testing.T) {
	g := newGateway(config.SefazConfig{})
	ctx := context.Background()
	env := envelope(t, "SP", 1, identity.EnvironmentProduction, "1")
	auth, err := g.Authorize(ctx, env)
	require.NoError(t, err)

	place, err := valueobject.NewMunicipality("3304557", "Rio de Janeiro", "RJ")
	require.NoError(t, err)

	_, err = g.Close(ctx, env.AccessKey, auth.Protocol, manifest.Closure{})
	assert.Error(t, err)

	r, err := g.Close(ctx, env.AccessKey, auth.Protocol, manifest.Closure{Municipality: place, Date: fixedNow})
	require.NoError(t, err)
	assert.True(t, r.Registered())

	r, err = g.Cancel(ctx, env.AccessKey, auth.Protocol, "Erro na digitacao dos dados")
	require.NoError(t, err)
	assert.Equal(t, CodeAlreadyClosed, r.Code)

	status, err := g.Status(ctx, env.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, CodeClosed, status.Code)
}

type authorizedList []manifest.Manifest

func (l authorizedList) FindAuthorizedBefore(_ context.Context, _ time.Time, limit int) ([]manifest.Manifest, error) {
	if len(l) > limit {
		return l[:limit], nil
	}
	return l, nil
}

func TestRestore_AcceptsEventsAfterRestart(t *testing.T) {
	ctx := context.Background()
	before := newGateway(config.SefazConfig{})
	env := envelope(t, "SP", 1, identity.EnvironmentProduction, "1")
	auth, err := before.Authorize(ctx, env)
	require.NoError(t, err)

	g := newGateway(config.SefazConfig{})
	n, err := g.Restore(ctx, authorizedList{
		{AccessKey: env.AccessKey, Protocol: auth.Protocol, Status: manifest.StatusAuthorized},
		{AccessKey: "", Protocol: "35240000000000009", Status: manifest.StatusAuthorized},
	}, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	status, err := g.Status(ctx, env.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, manifest.CodeAuthorized, status.Code)

	next, err := g.Authorize(ctx, envelope(t, "SP", 2, identity.EnvironmentProduction, "1"))
	require.NoError(t, err)
	assert.Equal(t, "35240000000000002", next.Protocol, "the counter resumes after the restored protocol")

	r, err := g.Cancel(ctx, env.AccessKey, auth.Protocol, "Erro na digitacao dos dados")
	require.NoError(t, err)
	assert.True(t, r.Registered())
}

func TestRestore_SourceError(t *testing.T) {
	g := newGateway(config.SefazConfig{})
	_, err := g.Restore(context.Background(), failingSource{}, 10)
	assert.Error(t, err)
}

type failingSource struct{}

func (failingSource) FindAuthorizedBefore(context.Context, time.Time, int) ([]manifest.Manifest, error) {
	return nil, errors.New("database unavailable")
}

func TestStatus_Unknown(t *testing.T) {
	g := newGateway(config.SefazConfig{})
	env := envelope(t, "BA", 5, identity.EnvironmentProduction, "1")

	status, err := g.Status(context.Background(), env.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, CodeNotFound, status.Code)
	assert.Empty(t, status.Status)

	r, err := g.Cancel(context.Background(), env.AccessKey, "1", "Erro na digitacao dos dados")
	require.NoError(t, err)
	assert.Equal(t, CodeNotFound, r.Code)
}

func TestServiceStatus(t *testing.T) {
	g := newGateway(config.SefazConfig{Environment: "homologation"})

	s, err := g.ServiceStatus(context.Background(), "SP", "")
	require.NoError(t, err)
	assert.Equal(t, manifest.CodeServiceRunning, s.Code)
	assert.Equal(t, "Servico em Operacao", s.Reason)
	assert.Equal(t, identity.EnvironmentHomologation, s.Environment)

	_, err = g.ServiceStatus(context.Background(), "XX", identity.EnvironmentProduction)
	assert.Error(t, err)
}

func TestReason_Unknown(t *testing.T) {
	assert.Equal(t, "Codigo 123", Reason("123"))
}
