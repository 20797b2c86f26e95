package printing

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DAMDFETemplate is the template name looked up in the store
const DAMDFETemplate = "damdfe.html"

// DAMDFE is the data bound to the DAMDFE template
type DAMDFE struct {
	Issuer       IssuerView
	Series       int
	Number       int
	AccessKey    string
	AccessKeyRaw string
	Protocol     string
	IssuedAt     *time.Time
	AuthorizedAt *time.Time
	Homologation bool
	Contingency  bool
	Status       string
	Cancelled    bool
	Closed       bool

	StartUF       string
	EndUF         string
	Route         []string
	LoadingPlaces []string
	DepartureAt   *time.Time

	Vehicle      *VehicleView
	Trailers     []VehicleView
	Drivers      []DriverView
	Insurance    *InsuranceView
	CIOT         string
	TollVouchers []TollView

	Documents   []DocumentView
	NFeCount    int
	CTeCount    int
	CargoValue  decimal.Decimal
	GrossWeight decimal.Decimal
	WeightUnit  string

	AdditionalInfo string
	GeneratedAt    time.Time
}

type IssuerView struct {
	LegalName         string
	TradeName         string
	CNPJ              string
	StateRegistration string
	RNTRC             string
	Address           string
	City              string
}

type VehicleView struct {
	Plate       string
	Renavam     string
	LicensingUF string
	TareKg      int
	CapacityKg  int
}

type DriverView struct {
	Name string
	CPF  string
}

type InsuranceView struct {
	InsurerName  string
	InsurerCNPJ  string
	PolicyNumber string
	Endorsements []string
}

type TollView struct {
	SupplierCNPJ  string
	VoucherNumber string
	Value         decimal.Decimal
}

type DocumentView struct {
	Model string
	Key   string
	Place string
}

// NewDAMDFE builds the view of an authorized (or later) manifest
func NewDAMDFE(m *manifest.Manifest, issuer manifest.Issuer, now time.Time) DAMDFE {
	d := DAMDFE{
		Issuer:         issuerView(issuer),
		Series:         m.Series,
		Number:         m.Number,
		AccessKey:      m.FormattedAccessKey(),
		AccessKeyRaw:   m.AccessKey,
		Protocol:       m.Protocol,
		IssuedAt:       m.IssuedAt,
		AuthorizedAt:   m.AuthorizedAt,
		Homologation:   m.Environment == identity.EnvironmentHomologation,
		Contingency:    m.EmissionType == manifest.EmissionContingency,
		Status:         string(m.Status),
		Cancelled:      m.Status == manifest.StatusCancelled,
		Closed:         m.Status == manifest.StatusClosed,
		StartUF:        m.StartUF,
		EndUF:          m.EndUF,
		Route:          m.RouteUFs,
		DepartureAt:    m.DepartureAt,
		CIOT:           m.CIOT,
		NFeCount:       m.NFeCount,
		CTeCount:       m.CTeCount,
		CargoValue:     m.CargoValue,
		GrossWeight:    m.GrossWeight,
		WeightUnit:     string(m.WeightUnit),
		AdditionalInfo: m.AdditionalInfo,
		GeneratedAt:    now,
	}

	for _, p := range m.LoadingPlaces {
		d.LoadingPlaces = append(d.LoadingPlaces, p.Name+"/"+p.UF)
	}
	if m.Vehicle != nil {
		v := vehicleView(*m.Vehicle)
		d.Vehicle = &v
	}
	for _, t := range m.Trailers {
		d.Trailers = append(d.Trailers, vehicleView(t))
	}
	for _, drv := range m.Drivers {
		d.Drivers = append(d.Drivers, DriverView{Name: drv.Name, CPF: formatDocument(drv.CPF)})
	}
	if m.Insurance != nil {
		d.Insurance = &InsuranceView{
			InsurerName:  m.Insurance.InsurerName,
			InsurerCNPJ:  formatDocument(m.Insurance.InsurerCNPJ),
			PolicyNumber: m.Insurance.PolicyNumber,
			Endorsements: m.Insurance.Endorsements,
		}
	}
	for _, tv := range m.TollVouchers {
		d.TollVouchers = append(d.TollVouchers, TollView{
			SupplierCNPJ:  formatDocument(tv.SupplierCNPJ),
			VoucherNumber: tv.VoucherNumber,
			Value:         tv.Value,
		})
	}
	for _, u := range m.UnloadingPlaces {
		for _, doc := range u.Documents {
			d.Documents = append(d.Documents, DocumentView{
				Model: documentModel(doc.Model),
				Key:   formatAccessKey(doc.Key),
				Place: u.Name + "/" + u.UF,
			})
		}
	}
	return d
}

func issuerView(i manifest.Issuer) IssuerView {
	v := IssuerView{
		LegalName:         i.LegalName,
		TradeName:         i.TradeName,
		CNPJ:              formatDocument(i.CNPJ),
		StateRegistration: i.StateRegistration,
		RNTRC:             i.RNTRC,
	}
	if !i.Address.IsZero() {
		v.Address = i.Address.Street() + ", " + i.Address.Number()
		if i.Address.District() != "" {
			v.Address += " - " + i.Address.District()
		}
		mun := i.Address.Municipality()
		v.City = fmt.Sprintf("%s/%s CEP %s", mun.Name(), mun.UF(), i.Address.FormattedCEP())
	}
	return v
}

func vehicleView(v manifest.VehicleRef) VehicleView {
	return VehicleView{
		Plate:       v.Plate,
		Renavam:     v.Renavam,
		LicensingUF: v.LicensingUF,
		TareKg:      v.TareKg,
		CapacityKg:  v.CapacityKg,
	}
}

func documentModel(model int) string {
	switch model {
	case valueobject.ModelNFe:
		return "NF-e"
	case valueobject.ModelCTe:
		return "CT-e"
	}
	return fmt.Sprintf("%02d", model)
}

func formatDocument(s string) string {
	doc, err := valueobject.NewTaxDocument(s)
	if err != nil {
		return s
	}
	return doc.Formatted()
}

func formatAccessKey(s string) string {
	key, err := valueobject.ParseAccessKey(s)
	if err != nil {
		return s
	}
	return key.Formatted()
}

// Generator renders DAMDFE documents from the template store
type Generator struct {
	templates *TemplateStore
	renderer  PDFRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewGenerator wires a template store and a PDF renderer
func NewGenerator(templates *TemplateStore, renderer PDFRenderer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		templates: templates,
		renderer:  renderer,
		logger:    logger,
		now:       time.Now,
	}
}

// RenderHTML executes the DAMDFE template
func (g *Generator) RenderHTML(m *manifest.Manifest, issuer manifest.Issuer) (string, error) {
	var buf bytes.Buffer
	if err := g.templates.Execute(&buf, DAMDFETemplate, NewDAMDFE(m, issuer, g.now())); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPDF produces the DAMDFE PDF for a manifest
func (g *Generator) RenderPDF(ctx context.Context, m *manifest.Manifest, issuer manifest.Issuer) ([]byte, error) {
	doc, err := g.RenderHTML(m, issuer)
	if err != nil {
		return nil, err
	}
	result, err := g.renderer.Render(ctx, &RenderRequest{
		HTML:       doc,
		Title:      "DAMDFE " + m.AccessKey,
		Margins:    DefaultMargins(),
		FooterHTML: `<div style="font-size:7px;width:100%;text-align:center">Pagina <span class="pageNumber"></span> de <span class="totalPages"></span></div>`,
	})
	if err != nil {
		return nil, err
	}
	g.logger.Debug("DAMDFE rendered",
		zap.String("access_key", m.AccessKey),
		zap.Int("pages", result.PageCount))
	return result.PDFData, nil
}
