package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saoPaulo(t *testing.T) Municipality {
	t.Helper()
	m, err := NewMunicipality("3550308", "São Paulo", "SP")
	require.NoError(t, err)
	return m
}

func TestNewMunicipality(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		mname   string
		uf      UF
		wantErr bool
	}{
		{name: "valid", code: "3550308", mname: "São Paulo", uf: "SP"},
		{name: "code from another state", code: "3106200", mname: "Belo Horizonte", uf: "SP", wantErr: true},
		{name: "short code", code: "355030", mname: "São Paulo", uf: "SP", wantErr: true},
		{name: "missing name", code: "3550308", mname: "  ", uf: "SP", wantErr: true},
		{name: "exterior", code: "9999999", mname: "Exterior", uf: UFExterior},
		{name: "exterior with real code", code: "3550308", mname: "Exterior", uf: UFExterior, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMunicipality(tt.code, tt.mname, tt.uf)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	m := saoPaulo(t)
	assert.Equal(t, "SAO PAULO", m.Name())
	assert.Equal(t, UF("SP"), m.UF())
}

func TestNewAddress(t *testing.T) {
	m := saoPaulo(t)

	addr, err := NewAddress("Av. Paulista", "", "Bela Vista", m, "01310-100", WithComplement("conj. 12"), WithPhone("(11) 3333-4444"))
	require.NoError(t, err)
	assert.Equal(t, "SN", addr.Number())
	assert.Equal(t, "01310100", addr.CEP())
	assert.Equal(t, "01310-100", addr.FormattedCEP())
	assert.Equal(t, "1133334444", addr.Phone())
	assert.Equal(t, "conj. 12", addr.Complement())

	_, err = NewAddress("", "1", "Centro", m, "")
	assert.Error(t, err)

	_, err = NewAddress("Rua A", "1", "Centro", Municipality{}, "")
	assert.Error(t, err)

	_, err = NewAddress("Rua A", "1", "Centro", m, "123")
	assert.Error(t, err)
}

func TestAddress_JSONAndScan(t *testing.T) {
	addr, err := NewAddress("Rua das Flores", "100", "Centro", saoPaulo(t), "01001000")
	require.NoError(t, err)

	data, err := json.Marshal(addr)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"municipality_code":"3550308"`)

	val, err := addr.Value()
	require.NoError(t, err)

	var scanned Address
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, addr, scanned)

	var empty Address
	require.NoError(t, empty.Scan(nil))
	assert.True(t, empty.IsZero())
	assert.Error(t, empty.Scan(42))

	nilVal, err := Address{}.Value()
	require.NoError(t, err)
	assert.Nil(t, nilVal)
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Transportes   São João  ", "Transportes Sao Joao"},
		{"Ação\tRápida\n", "Acao Rapida"},
		{"linha\x00oculta", "linhaoculta"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeText(tt.in))
	}
	assert.Equal(t, "CONCEICAO", SanitizeUpper("Conceição"))
	assert.Equal(t, "11222333000181", OnlyDigits("11.222.333/0001-81"))
}
