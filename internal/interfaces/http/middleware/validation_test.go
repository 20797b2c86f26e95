package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mdfe/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fiscalRequest struct {
	CNPJ      string   `json:"cnpj" binding:"required,cnpj"`
	CPF       string   `json:"cpf" binding:"omitempty,cpf"`
	Document  string   `json:"document" binding:"omitempty,taxdoc"`
	UF        string   `json:"uf" binding:"required,uf"`
	Plate     string   `json:"plate" binding:"omitempty,plate"`
	NFeKeys   []string `json:"nfe_keys" binding:"dive,accesskey"`
	Reference string   `json:"reference" binding:"max=10"`
}

func newValidationRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	SetupValidator()
	r := gin.New()
	r.Use(RequestID())
	r.POST("/test", func(c *gin.Context) {
		var req fiscalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})
	return r
}

func postJSON(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupValidator_FiscalTags(t *testing.T) {
	r := newValidationRouter()

	t.Run("valid identifiers", func(t *testing.T) {
		w := postJSON(r, `{
			"cnpj": "11.222.333/0001-81",
			"cpf": "529.982.247-25",
			"document": "11222333000181",
			"uf": "sp",
			"plate": "BRA-2E19",
			"nfe_keys": ["35241011222333000181550010000045671876543218"]
		}`)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("invalid identifiers are reported per field", func(t *testing.T) {
		w := postJSON(r, `{
			"cnpj": "11.222.333/0001-82",
			"cpf": "111.111.111-11",
			"uf": "XX",
			"plate": "12ABC34",
			"nfe_keys": ["35241011222333000181550010000045671876543210"]
		}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid CNPJ", fields["cnpj"])
		assert.Equal(t, "Invalid CPF", fields["cpf"])
		assert.Equal(t, "Invalid UF", fields["uf"])
		assert.Contains(t, fields["plate"], "Invalid plate")
		assert.Equal(t, "Invalid access key", fields["nfe_keys[0]"])
	})

	t.Run("foreign UF is accepted for addresses", func(t *testing.T) {
		w := postJSON(r, `{"cnpj": "11222333000181", "uf": "EX"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w := postJSON(r, `{"cnpj": `)
		require.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})
}

func TestSetupValidator_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		SetupValidator()
		SetupValidator()
	})
}
