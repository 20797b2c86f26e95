package printing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPDFRenderer struct {
	mock.Mock
}

func (m *MockPDFRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*RenderResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPDFRenderer) Close() error { return nil }

func authorizedManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	issued := time.Date(2024, 10, 15, 13, 30, 0, 0, time.UTC)
	authorized := issued.Add(2 * time.Minute)

	key, err := valueobject.NewAccessKey(valueobject.AccessKeyParts{
		UF: "SP", IssuedAt: issued, IssuerCNPJ: "11222333000181",
		Model: valueobject.ModelMDFe, Series: 1, Number: 123, EmissionType: 1, Code: 12345678,
	})
	require.NoError(t, err)
	nfe, err := valueobject.NewAccessKey(valueobject.AccessKeyParts{
		UF: "SP", IssuedAt: issued, IssuerCNPJ: "11222333000181",
		Model: valueobject.ModelNFe, Series: 1, Number: 987, EmissionType: 1, Code: 1,
	})
	require.NoError(t, err)

	return &manifest.Manifest{
		Series:       1,
		Number:       123,
		AccessKey:    key.String(),
		IssuedAt:     &issued,
		EmissionType: manifest.EmissionNormal,
		Environment:  identity.EnvironmentProduction,
		StartUF:      "SP",
		EndUF:        "RJ",
		RouteUFs:     []string{"MG"},
		LoadingPlaces: []manifest.Place{
			{Code: "3550308", Name: "SAO PAULO", UF: "SP"},
		},
		UnloadingPlaces: []manifest.UnloadingPlace{{
			Place:     manifest.Place{Code: "3304557", Name: "RIO DE JANEIRO", UF: "RJ"},
			Documents: []manifest.FiscalDocument{{Model: valueobject.ModelNFe, Key: nfe.String()}},
		}},
		Vehicle:      &manifest.VehicleRef{VehicleID: uuid.New(), Plate: "ABC1D23", TareKg: 8000, LicensingUF: "SP"},
		Drivers:      []manifest.DriverRef{{DriverID: uuid.New(), Name: "JOAO DA SILVA", CPF: "52998224725"}},
		NFeCount:     1,
		CargoValue:   decimal.RequireFromString("12345.6"),
		GrossWeight:  decimal.RequireFromString("1500.5"),
		WeightUnit:   manifest.WeightUnitKG,
		Status:       manifest.StatusAuthorized,
		Protocol:     "935240000000123",
		AuthorizedAt: &authorized,
	}
}

func testIssuer() manifest.Issuer {
	return manifest.Issuer{
		CNPJ:              "11222333000181",
		StateRegistration: "123456789",
		LegalName:         "TRANSPORTES EXEMPLO LTDA",
		RNTRC:             "12345678",
	}
}

func TestNewDAMDFE(t *testing.T) {
	m := authorizedManifest(t)
	now := time.Now()
	d := NewDAMDFE(m, testIssuer(), now)

	assert.Equal(t, "11.222.333/0001-81", d.Issuer.CNPJ)
	assert.Len(t, strings.Fields(d.AccessKey), 11, "key printed in 11 groups of four")
	assert.Equal(t, m.AccessKey, strings.ReplaceAll(d.AccessKey, " ", ""))
	assert.Equal(t, []string{"SAO PAULO/SP"}, d.LoadingPlaces)
	require.Len(t, d.Drivers, 1)
	assert.Equal(t, "529.982.247-25", d.Drivers[0].CPF)
	require.Len(t, d.Documents, 1)
	assert.Equal(t, "NF-e", d.Documents[0].Model)
	assert.Equal(t, "RIO DE JANEIRO/RJ", d.Documents[0].Place)
	assert.False(t, d.Homologation)
	assert.False(t, d.Cancelled)
	assert.Equal(t, now, d.GeneratedAt)
}

func TestNewDAMDFE_Flags(t *testing.T) {
	m := authorizedManifest(t)
	m.Environment = identity.EnvironmentHomologation
	m.EmissionType = manifest.EmissionContingency
	m.Status = manifest.StatusCancelled

	d := NewDAMDFE(m, testIssuer(), time.Now())
	assert.True(t, d.Homologation)
	assert.True(t, d.Contingency)
	assert.True(t, d.Cancelled)
}

func TestGenerator_RenderHTML(t *testing.T) {
	store, err := NewTemplateStore("", nil)
	require.NoError(t, err)
	m := authorizedManifest(t)

	html, err := NewGenerator(store, new(MockPDFRenderer), nil).RenderHTML(m, testIssuer())
	require.NoError(t, err)

	assert.Contains(t, html, m.FormattedAccessKey())
	assert.Contains(t, html, "935240000000123")
	assert.Contains(t, html, "TRANSPORTES EXEMPLO LTDA")
	assert.Contains(t, html, "ABC1D23")
	assert.Contains(t, html, "JOAO DA SILVA")
	assert.Contains(t, html, "R$ 12.345,60")
	assert.Contains(t, html, "1.500,5000")
	assert.Contains(t, html, "000000123")
	assert.Contains(t, html, "15/10/2024 10:30:00", "times are printed in Brasilia time")
	assert.NotContains(t, html, "SEM VALOR FISCAL")
}

func TestGenerator_RenderPDF(t *testing.T) {
	store, err := NewTemplateStore("", nil)
	require.NoError(t, err)
	renderer := new(MockPDFRenderer)
	renderer.On("Render", mock.Anything, mock.MatchedBy(func(req *RenderRequest) bool {
		return strings.Contains(req.HTML, "DAMDFE") && req.FooterHTML != "" && req.Margins == DefaultMargins()
	})).Return(&RenderResult{PDFData: []byte("%PDF-1.4"), PageCount: 1}, nil)

	pdf, err := NewGenerator(store, renderer, nil).RenderPDF(context.Background(), authorizedManifest(t), testIssuer())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(pdf))
	renderer.AssertExpectations(t)
}

func TestGenerator_RenderPDFError(t *testing.T) {
	store, err := NewTemplateStore("", nil)
	require.NoError(t, err)
	renderer := new(MockPDFRenderer)
	renderer.On("Render", mock.Anything, mock.Anything).
		Return(nil, NewRenderError(ErrCodeRenderTimeout, "timed out", nil))

	_, err = NewGenerator(store, renderer, nil).RenderPDF(context.Background(), authorizedManifest(t), testIssuer())
	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, ErrCodeRenderTimeout, renderErr.Code)
}
