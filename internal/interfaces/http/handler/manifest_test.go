package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mdfe/backend/internal/application/common"
	"github.com/mdfe/backend/internal/application/manifest"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockManifestService struct{ mock.Mock }

func (m *mockManifestService) CreateDraft(ctx context.Context, tenantID uuid.UUID, req manifest.CreateManifestRequest) (*manifest.ManifestResponse, error) {
	return mockResult[manifest.ManifestResponse](m.Called(ctx, tenantID, req))
}

func (m *mockManifestService) UpdateDraft(ctx context.Context, tenantID, id uuid.UUID, req manifest.UpdateManifestRequest) (*manifest.ManifestResponse, error) {
	return mockResult[manifest.ManifestResponse](m.Called(ctx, tenantID, id, req))
}

func (m *mockManifestService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*manifest.ManifestResponse, error) {
	return mockResult[manifest.ManifestResponse](m.Called(ctx, tenantID, id))
}

func (m *mockManifestService) GetByAccessKey(ctx context.Context, tenantID uuid.UUID, key string) (*manifest.ManifestResponse, error) {
	return mockResult[manifest.ManifestResponse](m.Called(ctx, tenantID, key))
}

func (m *mockManifestService) List(ctx context.Context, tenantID uuid.UUID, filter manifest.ListFilter) (*shared.Paginated[manifest.ManifestSummary], error) {
	return mockPage[manifest.ManifestSummary](m.Called(ctx, tenantID, filter))
}

func (m *mockManifestService) ListUnclosed(ctx context.Context, tenantID uuid.UUID) (*manifest.UnclosedResponse, error) {
	return mockResult[manifest.UnclosedResponse](m.Called(ctx, tenantID))
}

func (m *mockManifestService) DeleteDraft(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *mockManifestService) Transmit(ctx context.Context, tenantID, id uuid.UUID, key string) (*manifest.TransmitResult, error) {
	return mockResult[manifest.TransmitResult](m.Called(ctx, tenantID, id, key))
}

func (m *mockManifestService) Consult(ctx context.Context, tenantID, id uuid.UUID) (*manifest.ConsultResponse, error) {
	return mockResult[manifest.ConsultResponse](m.Called(ctx, tenantID, id))
}

func (m *mockManifestService) Cancel(ctx context.Context, tenantID, id uuid.UUID, req manifest.CancelManifestRequest) (*manifest.ManifestResponse, error) {
	return mockResult[manifest.ManifestResponse](m.Called(ctx, tenantID, id, req))
}

func (m *mockManifestService) Close(ctx context.Context, tenantID, id uuid.UUID, req manifest.CloseManifestRequest) (*manifest.ManifestResponse, error) {
	return mockResult[manifest.ManifestResponse](m.Called(ctx, tenantID, id, req))
}

func (m *mockManifestService) IncludeDriver(ctx context.Context, tenantID, id uuid.UUID, req manifest.IncludeDriverRequest) (*manifest.ManifestResponse, error) {
	return mockResult[manifest.ManifestResponse](m.Called(ctx, tenantID, id, req))
}

func (m *mockManifestService) RenderDAMDFE(ctx context.Context, tenantID, id uuid.UUID) (*manifest.DocumentFile, error) {
	return mockResult[manifest.DocumentFile](m.Called(ctx, tenantID, id))
}

func (m *mockManifestService) DownloadXML(ctx context.Context, tenantID, id uuid.UUID) (*manifest.DocumentFile, error) {
	return mockResult[manifest.DocumentFile](m.Called(ctx, tenantID, id))
}

func (m *mockManifestService) ServiceStatus(ctx context.Context, tenantID uuid.UUID, uf string) (*manifest.ServiceStatusResponse, error) {
	return mockResult[manifest.ServiceStatusResponse](m.Called(ctx, tenantID, uf))
}

func manifestRouter(svc ManifestService) *gin.Engine {
	h := NewManifestHandler(svc)
	r := authed()
	r.POST("/manifests", h.Create)
	r.GET("/manifests", h.List)
	r.GET("/manifests/unclosed", h.ListUnclosed)
	r.GET("/manifests/by-key/:key", h.GetByAccessKey)
	r.GET("/manifests/:id", h.GetByID)
	r.PUT("/manifests/:id", h.Update)
	r.DELETE("/manifests/:id", h.Delete)
	r.POST("/manifests/:id/transmit", h.Transmit)
	r.GET("/manifests/:id/status", h.Status)
	r.POST("/manifests/:id/cancel", h.Cancel)
	r.POST("/manifests/:id/close", h.Close)
	r.POST("/manifests/:id/drivers", h.IncludeDriver)
	r.GET("/manifests/:id/damdfe", h.DAMDFE)
	r.GET("/manifests/:id/xml", h.XML)
	r.GET("/sefaz/status/:uf", h.ServiceStatus)
	return r
}

func draftContent() manifest.ContentRequest {
	vehicleID := uuid.New()
	return manifest.ContentRequest{
		StartUF:       "SP",
		EndUF:         "RJ",
		LoadingPlaces: []common.MunicipalityInput{{Code: "3550308", Name: "Sao Paulo", UF: "SP"}},
		UnloadingPlaces: []manifest.UnloadingInput{{
			Municipality: common.MunicipalityInput{Code: "3304557", Name: "Rio de Janeiro", UF: "RJ"},
		}},
		VehicleID:   &vehicleID,
		DriverIDs:   []uuid.UUID{uuid.New()},
		CargoValue:  decimal.NewFromInt(15000),
		GrossWeight: decimal.NewFromInt(12000),
		WeightUnit:  "KG",
	}
}

func TestManifestHandler_Create(t *testing.T) {
	svc := new(mockManifestService)
	svc.On("CreateDraft", mock.Anything, testTenantID, mock.MatchedBy(func(req manifest.CreateManifestRequest) bool {
		return req.CreatedBy == testUserID && req.StartUF == "SP" && req.CargoValue.Equal(decimal.NewFromInt(15000))
	})).Return(&manifest.ManifestResponse{ID: uuid.New(), Status: "draft"}, nil)

	w := perform(manifestRouter(svc), http.MethodPost, "/manifests", manifest.CreateManifestRequest{ContentRequest: draftContent()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got manifest.ManifestResponse
	decodeData(t, w, &got)
	assert.Equal(t, "draft", got.Status)
	svc.AssertExpectations(t)
}

func TestManifestHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*manifest.ContentRequest)
		field  string
	}{
		{"unknown start uf", func(c *manifest.ContentRequest) { c.StartUF = "XX" }, "start_uf"},
		{"route uf", func(c *manifest.ContentRequest) { c.RouteUFs = []string{"MG", "ZZ"} }, "route_ufs[1]"},
		{"weight unit", func(c *manifest.ContentRequest) { c.WeightUnit = "LB" }, "weight_unit"},
		{"ciot", func(c *manifest.ContentRequest) { c.CIOT = "12345" }, "ciot"},
		{"document key", func(c *manifest.ContentRequest) {
			c.UnloadingPlaces[0].DocumentKeys = []string{"123"}
		}, "document_keys[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockManifestService)
			content := draftContent()
			tt.mutate(&content)

			w := perform(manifestRouter(svc), http.MethodPost, "/manifests", manifest.CreateManifestRequest{ContentRequest: content})
			require.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode(t, w)
			require.NotEmpty(t, resp.Error.Details)
			assert.Equal(t, tt.field, resp.Error.Details[0].Field)
			svc.AssertNotCalled(t, "CreateDraft", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestManifestHandler_Queries(t *testing.T) {
	id := uuid.New()
	key := "35260511222333000181580010000000011123456780"
	svc := new(mockManifestService)
	svc.On("GetByID", mock.Anything, testTenantID, id).Return(&manifest.ManifestResponse{ID: id}, nil)
	svc.On("GetByAccessKey", mock.Anything, testTenantID, key).Return(&manifest.ManifestResponse{ID: id, AccessKey: key}, nil)
	svc.On("List", mock.Anything, testTenantID, mock.MatchedBy(func(f manifest.ListFilter) bool {
		return f.Status == "authorized" && f.UF == "SP" && f.From != nil && f.From.Day() == 1
	})).Return(&shared.Paginated[manifest.ManifestSummary]{Items: []manifest.ManifestSummary{{ID: id}}, Total: 1, Page: 1, PageSize: 20}, nil)
	svc.On("ListUnclosed", mock.Anything, testTenantID).Return(&manifest.UnclosedResponse{}, nil)
	r := manifestRouter(svc)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/manifests/"+id.String(), nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/manifests/by-key/"+key, nil).Code)

	w := perform(r, http.MethodGet, "/manifests?status=authorized&uf=SP&from=2026-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), decode(t, w).Meta.Total)

	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/manifests?status=sent", nil).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/manifests?vehicle_id=abc", nil).Code)

	w = perform(r, http.MethodGet, "/manifests/unclosed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
	svc.AssertExpectations(t)
}

func TestManifestHandler_UpdateAndDelete(t *testing.T) {
	id := uuid.New()
	svc := new(mockManifestService)
	svc.On("UpdateDraft", mock.Anything, testTenantID, id, mock.Anything).
		Return(nil, shared.NewDomainError("MANIFEST_NOT_EDITABLE", "Only drafts and rejected manifests can be edited"))
	svc.On("DeleteDraft", mock.Anything, testTenantID, id).Return(nil)
	r := manifestRouter(svc)

	w := perform(r, http.MethodPut, "/manifests/"+id.String(), manifest.UpdateManifestRequest{ContentRequest: draftContent()})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "MANIFEST_NOT_EDITABLE", errCode(t, w))

	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodDelete, "/manifests/"+id.String(), nil).Code)
}

func TestManifestHandler_Transmit(t *testing.T) {
	id := uuid.New()

	t.Run("authorized", func(t *testing.T) {
		svc := new(mockManifestService)
		svc.On("Transmit", mock.Anything, testTenantID, id, "key-1").Return(&manifest.TransmitResult{
			Manifest: manifest.ManifestResponse{ID: id, Status: "authorized", Protocol: "935260000000001"},
			Code:     "100",
			Reason:   "Autorizado o uso do MDF-e",
		}, nil)

		w := perform(manifestRouter(svc), http.MethodPost, "/manifests/"+id.String()+"/transmit", nil,
			middleware.IdempotencyKeyHeader, " key-1 ")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Empty(t, w.Header().Get(middleware.IdempotentReplayedHeader))

		var got manifest.TransmitResult
		decodeData(t, w, &got)
		assert.Equal(t, "100", got.Code)
	})

	t.Run("pending answers 202", func(t *testing.T) {
		svc := new(mockManifestService)
		svc.On("Transmit", mock.Anything, testTenantID, id, "").Return(&manifest.TransmitResult{
			Manifest: manifest.ManifestResponse{ID: id, Status: "pending"},
		}, nil)

		w := perform(manifestRouter(svc), http.MethodPost, "/manifests/"+id.String()+"/transmit", nil)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("replayed", func(t *testing.T) {
		svc := new(mockManifestService)
		svc.On("Transmit", mock.Anything, testTenantID, id, "key-1").Return(&manifest.TransmitResult{
			Manifest: manifest.ManifestResponse{ID: id, Status: "authorized"},
			Replayed: true,
		}, nil)

		w := perform(manifestRouter(svc), http.MethodPost, "/manifests/"+id.String()+"/transmit", nil,
			middleware.IdempotencyKeyHeader, "key-1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "true", w.Header().Get(middleware.IdempotentReplayedHeader))
	})

	t.Run("key too long", func(t *testing.T) {
		svc := new(mockManifestService)
		w := perform(manifestRouter(svc), http.MethodPost, "/manifests/"+id.String()+"/transmit", nil,
			middleware.IdempotencyKeyHeader, strings.Repeat("k", maxIdempotencyKeyLength+1))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Transmit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	errs := []struct {
		code   string
		status int
	}{
		{"DUPLICATE_OPEN_MANIFEST", http.StatusConflict},
		{"IDEMPOTENCY_KEY_REUSED", http.StatusConflict},
		{"SEFAZ_UNAVAILABLE", http.StatusServiceUnavailable},
		{"VEHICLE_INACTIVE", http.StatusUnprocessableEntity},
	}
	for _, tt := range errs {
		t.Run(tt.code, func(t *testing.T) {
			svc := new(mockManifestService)
			svc.On("Transmit", mock.Anything, testTenantID, id, mock.Anything).Return(nil, shared.NewDomainError(tt.code, "rejected"))

			w := perform(manifestRouter(svc), http.MethodPost, "/manifests/"+id.String()+"/transmit", nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errCode(t, w))
		})
	}
}

func TestManifestHandler_Events(t *testing.T) {
	id, driverID := uuid.New(), uuid.New()
	svc := new(mockManifestService)
	justification := "Carga devolvida ao remetente"
	svc.On("Cancel", mock.Anything, testTenantID, id, manifest.CancelManifestRequest{Justification: justification}).
		Return(nil, shared.NewDomainError("CANCEL_WINDOW_EXPIRED", "Cancellation is only allowed within 24 hours"))
	svc.On("Close", mock.Anything, testTenantID, id, mock.MatchedBy(func(req manifest.CloseManifestRequest) bool {
		return req.Municipality.Code == "3304557" && req.Date == nil
	})).Return(&manifest.ManifestResponse{ID: id, Status: "closed"}, nil)
	svc.On("IncludeDriver", mock.Anything, testTenantID, id, manifest.IncludeDriverRequest{DriverID: driverID}).
		Return(&manifest.ManifestResponse{ID: id, Status: "authorized"}, nil)
	svc.On("Consult", mock.Anything, testTenantID, id).Return(&manifest.ConsultResponse{Code: "100", Reconciled: true}, nil)
	r := manifestRouter(svc)
	base := "/manifests/" + id.String()

	w := perform(r, http.MethodPost, base+"/cancel", manifest.CancelManifestRequest{Justification: "too short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, base+"/cancel", manifest.CancelManifestRequest{Justification: justification})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CANCEL_WINDOW_EXPIRED", errCode(t, w))

	w = perform(r, http.MethodPost, base+"/close", manifest.CloseManifestRequest{
		Municipality: common.MunicipalityInput{Code: "3304557", Name: "Rio de Janeiro", UF: "RJ"},
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, base+"/drivers", manifest.IncludeDriverRequest{DriverID: driverID}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, base+"/drivers", `{}`).Code)

	w = perform(r, http.MethodGet, base+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var consult manifest.ConsultResponse
	decodeData(t, w, &consult)
	assert.True(t, consult.Reconciled)
	svc.AssertExpectations(t)
}

func TestManifestHandler_Documents(t *testing.T) {
	id := uuid.New()
	expires := time.Now().Add(15 * time.Minute)

	t.Run("pdf inline", func(t *testing.T) {
		svc := new(mockManifestService)
		svc.On("RenderDAMDFE", mock.Anything, testTenantID, id).Return(&manifest.DocumentFile{
			Filename: "key-damdfe.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"),
		}, nil)

		w := perform(manifestRouter(svc), http.MethodGet, "/manifests/"+id.String()+"/damdfe", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, `inline; filename="key-damdfe.pdf"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-1.4", w.Body.String())
	})

	t.Run("xml link", func(t *testing.T) {
		svc := new(mockManifestService)
		svc.On("DownloadXML", mock.Anything, testTenantID, id).Return(&manifest.DocumentFile{
			Filename: "key-mdfe.xml", ContentType: "application/xml", Data: []byte("<mdfe/>"),
			URL: "https://bucket.s3.amazonaws.com/key-mdfe.xml?sig=1", ExpiresAt: &expires,
		}, nil)

		w := perform(manifestRouter(svc), http.MethodGet, "/manifests/"+id.String()+"/xml?link=true", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got manifest.DocumentFile
		decodeData(t, w, &got)
		assert.Contains(t, got.URL, "sig=1")

		w = perform(manifestRouter(svc), http.MethodGet, "/manifests/"+id.String()+"/xml", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="key-mdfe.xml"`, w.Header().Get("Content-Disposition"))
	})

	t.Run("not available", func(t *testing.T) {
		svc := new(mockManifestService)
		svc.On("DownloadXML", mock.Anything, testTenantID, id).Return(nil, shared.NewDomainError("XML_NOT_AVAILABLE", "No archived XML"))

		w := perform(manifestRouter(svc), http.MethodGet, "/manifests/"+id.String()+"/xml", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("renderer down", func(t *testing.T) {
		svc := new(mockManifestService)
		svc.On("RenderDAMDFE", mock.Anything, testTenantID, id).Return(nil, shared.NewDomainError("DAMDFE_UNAVAILABLE", "not configured"))

		w := perform(manifestRouter(svc), http.MethodGet, "/manifests/"+id.String()+"/damdfe", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestManifestHandler_ServiceStatus(t *testing.T) {
	svc := new(mockManifestService)
	svc.On("ServiceStatus", mock.Anything, testTenantID, "SP").Return(&manifest.ServiceStatusResponse{
		UF: "SP", Code: "107", Reason: "Servico em Operacao", Online: true,
	}, nil)

	w := perform(manifestRouter(svc), http.MethodGet, "/sefaz/status/sp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got manifest.ServiceStatusResponse
	decodeData(t, w, &got)
	assert.True(t, got.Online)
	assert.Equal(t, "107", got.Code)
}
