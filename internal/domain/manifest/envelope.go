package manifest

import (
	"encoding/xml"
	"fmt"

	"github.com/mdfe/backend/internal/domain/identity"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// XMLNamespace identifies the envelope layout produced by this system
const XMLNamespace = "urn:mdfe-backend:envelope:v1"

// Issuer is the emitter snapshot written into the envelope
type Issuer struct {
	CNPJ              string
	StateRegistration string
	LegalName         string
	TradeName         string
	RNTRC             string
	Address           valueobject.Address
}

// IssuerOf snapshots a tenant
func IssuerOf(t *identity.Tenant) Issuer {
	return Issuer{
		CNPJ:              t.CNPJ,
		StateRegistration: t.StateRegistration,
		LegalName:         t.LegalName,
		TradeName:         t.TradeName,
		RNTRC:             t.RNTRC,
		Address:           t.Address,
	}
}

type xmlManifest struct {
	XMLName xml.Name  `xml:"mdfe"`
	Xmlns   string    `xml:"xmlns,attr"`
	ID      string    `xml:"id,attr"`
	Ide     xmlIde    `xml:"ide"`
	Emit    xmlEmit   `xml:"emit"`
	Road    xmlRoad   `xml:"road"`
	Docs    []xmlUnl  `xml:"documents>unloading"`
	Seg     []xmlSeg  `xml:"insurance,omitempty"`
	Tot     xmlTotals `xml:"totals"`
	Info    string    `xml:"additionalInfo,omitempty"`
}

type xmlIde struct {
	CUF          int        `xml:"cUF"`
	Environment  int        `xml:"tpAmb"`
	EmitterType  int        `xml:"tpEmit"`
	Model        int        `xml:"mod"`
	Series       int        `xml:"serie"`
	Number       int        `xml:"nMDF"`
	Code         string     `xml:"cMDF"`
	CheckDigit   int        `xml:"cDV"`
	Modal        int        `xml:"modal"`
	IssuedAt     string     `xml:"dhEmi"`
	EmissionType int        `xml:"tpEmis"`
	StartUF      string     `xml:"UFIni"`
	EndUF        string     `xml:"UFFim"`
	Loading      []xmlPlace `xml:"infMunCarrega"`
	Route        []string   `xml:"infPercurso>UFPer,omitempty"`
	DepartureAt  string     `xml:"dhIniViagem,omitempty"`
}

type xmlPlace struct {
	Code string `xml:"cMun"`
	Name string `xml:"xMun"`
}

type xmlEmit struct {
	CNPJ      string `xml:"CNPJ"`
	IE        string `xml:"IE"`
	Name      string `xml:"xNome"`
	TradeName string `xml:"xFant,omitempty"`
	Street    string `xml:"enderEmit>xLgr"`
	Number    string `xml:"enderEmit>nro"`
	District  string `xml:"enderEmit>xBairro"`
	MunCode   string `xml:"enderEmit>cMun"`
	MunName   string `xml:"enderEmit>xMun"`
	CEP       string `xml:"enderEmit>CEP"`
	UF        string `xml:"enderEmit>UF"`
}

type xmlRoad struct {
	RNTRC    string       `xml:"RNTRC,omitempty"`
	CIOT     string       `xml:"infCIOT>CIOT,omitempty"`
	Tolls    []xmlToll    `xml:"valePed>disp,omitempty"`
	Clients  []xmlClient  `xml:"infContratante,omitempty"`
	Traction xmlVehicle   `xml:"veicTracao"`
	Trailers []xmlVehicle `xml:"veicReboque,omitempty"`
}

type xmlVehicle struct {
	Plate      string `xml:"placa"`
	Renavam    string `xml:"RENAVAM,omitempty"`
	TareKg     int    `xml:"tara"`
	CapacityKg int    `xml:"capKG"`
	CapacityM3 int    `xml:"capM3"`
	WheelType  string `xml:"tpRod,omitempty"`
	BodyType   string `xml:"tpCar"`
	UF         string `xml:"UF"`

	Drivers []xmlDriver `xml:"condutor,omitempty"`
}

type xmlDriver struct {
	Name string `xml:"xNome"`
	CPF  string `xml:"CPF"`
}

type xmlClient struct {
	Name string `xml:"xNome,omitempty"`
	CNPJ string `xml:"CNPJ,omitempty"`
	CPF  string `xml:"CPF,omitempty"`
}

type xmlToll struct {
	SupplierCNPJ string `xml:"CNPJForn"`
	Number       string `xml:"nCompra"`
	Value        string `xml:"vValePed"`
}

type xmlUnl struct {
	Code string   `xml:"cMunDescarga"`
	Name string   `xml:"xMunDescarga"`
	NFe  []string `xml:"infNFe>chNFe,omitempty"`
	CTe  []string `xml:"infCTe>chCTe,omitempty"`
}

type xmlSeg struct {
	Responsible  int      `xml:"infResp>respSeg"`
	RespCNPJ     string   `xml:"infResp>CNPJ,omitempty"`
	RespCPF      string   `xml:"infResp>CPF,omitempty"`
	InsurerName  string   `xml:"infSeg>xSeg,omitempty"`
	InsurerCNPJ  string   `xml:"infSeg>CNPJ,omitempty"`
	Policy       string   `xml:"nApol,omitempty"`
	Endorsements []string `xml:"nAver,omitempty"`
}

type xmlTotals struct {
	CTeCount    int    `xml:"qCTe,omitempty"`
	NFeCount    int    `xml:"qNFe,omitempty"`
	CargoValue  string `xml:"vCarga"`
	WeightUnit  string `xml:"cUnid"`
	GrossWeight string `xml:"qCarga"`
}

// BuildEnvelope renders a numbered manifest into its XML envelope
func BuildEnvelope(m *Manifest, issuer Issuer) (Envelope, error) {
	if !m.HasNumber() || m.IssuedAt == nil {
		return Envelope{}, shared.NewDomainError("NOT_NUMBERED", "Manifest must be numbered before building the envelope")
	}
	key, err := valueobject.ParseAccessKey(m.AccessKey)
	if err != nil {
		return Envelope{}, err
	}
	uf, err := valueobject.ParseUF(m.StartUF)
	if err != nil {
		return Envelope{}, err
	}

	doc := xmlManifest{
		Xmlns: XMLNamespace,
		ID:    "MDFe" + m.AccessKey,
		Ide: xmlIde{
			CUF:          uf.Code(),
			Environment:  m.Environment.Code(),
			EmitterType:  int(m.EmitterType),
			Model:        valueobject.ModelMDFe,
			Series:       m.Series,
			Number:       m.Number,
			Code:         m.NumericCode,
			CheckDigit:   key.CheckDigit(),
			Modal:        int(m.Modal),
			IssuedAt:     m.IssuedAt.Format("2006-01-02T15:04:05-07:00"),
			EmissionType: int(m.EmissionType),
			StartUF:      m.StartUF,
			EndUF:        m.EndUF,
			Route:        m.RouteUFs,
		},
		Emit: xmlEmit{
			CNPJ:      issuer.CNPJ,
			IE:        issuer.StateRegistration,
			Name:      issuer.LegalName,
			TradeName: issuer.TradeName,
			Street:    issuer.Address.Street(),
			Number:    issuer.Address.Number(),
			District:  issuer.Address.District(),
			MunCode:   issuer.Address.Municipality().Code(),
			MunName:   issuer.Address.Municipality().Name(),
			CEP:       issuer.Address.CEP(),
			UF:        issuer.Address.Municipality().UF().String(),
		},
		Road: xmlRoad{
			RNTRC: issuer.RNTRC,
			CIOT:  m.CIOT,
		},
		Tot: xmlTotals{
			CTeCount:    m.CTeCount,
			NFeCount:    m.NFeCount,
			CargoValue:  m.CargoValue.StringFixed(2),
			WeightUnit:  m.WeightUnit.Code(),
			GrossWeight: m.GrossWeight.StringFixed(4),
		},
		Info: m.AdditionalInfo,
	}
	if m.DepartureAt != nil {
		doc.Ide.DepartureAt = m.DepartureAt.Format("2006-01-02T15:04:05-07:00")
	}
	for _, p := range m.LoadingPlaces {
		doc.Ide.Loading = append(doc.Ide.Loading, xmlPlace{Code: p.Code, Name: p.Name})
	}
	if m.Vehicle != nil {
		doc.Road.Traction = vehicleXML(*m.Vehicle)
	}
	for _, t := range m.Trailers {
		doc.Road.Trailers = append(doc.Road.Trailers, vehicleXML(t))
	}
	for _, d := range m.Drivers {
		doc.Road.Traction.Drivers = append(doc.Road.Traction.Drivers, xmlDriver{Name: d.Name, CPF: d.CPF})
	}
	for _, c := range m.Clients {
		xc := xmlClient{Name: c.Name}
		if len(c.Document) == 14 {
			xc.CNPJ = c.Document
		} else {
			xc.CPF = c.Document
		}
		doc.Road.Clients = append(doc.Road.Clients, xc)
	}
	for _, tv := range m.TollVouchers {
		doc.Road.Tolls = append(doc.Road.Tolls, xmlToll{SupplierCNPJ: tv.SupplierCNPJ, Number: tv.VoucherNumber, Value: tv.Value.StringFixed(2)})
	}
	for _, u := range m.UnloadingPlaces {
		xu := xmlUnl{Code: u.Code, Name: u.Name}
		for _, d := range u.Documents {
			if d.Model == valueobject.ModelCTe {
				xu.CTe = append(xu.CTe, d.Key)
			} else {
				xu.NFe = append(xu.NFe, d.Key)
			}
		}
		doc.Docs = append(doc.Docs, xu)
	}
	if in := m.Insurance; in != nil {
		seg := xmlSeg{
			Responsible:  int(in.Responsible),
			InsurerName:  in.InsurerName,
			InsurerCNPJ:  in.InsurerCNPJ,
			Policy:       in.PolicyNumber,
			Endorsements: in.Endorsements,
		}
		switch len(in.ResponsibleDocument) {
		case 14:
			seg.RespCNPJ = in.ResponsibleDocument
		case 11:
			seg.RespCPF = in.ResponsibleDocument
		}
		if in.Responsible == InsuranceByEmitter {
			seg.RespCNPJ = issuer.CNPJ
		}
		doc.Seg = append(doc.Seg, seg)
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal manifest xml: %w", err)
	}
	out := append([]byte(xml.Header), body...)
	return Envelope{
		AccessKey:   m.AccessKey,
		UF:          uf,
		Environment: m.Environment,
		CargoValue:  m.CargoValue,
		XML:         out,
	}, nil
}

func vehicleXML(v VehicleRef) xmlVehicle {
	return xmlVehicle{
		Plate:      v.Plate,
		Renavam:    v.Renavam,
		TareKg:     v.TareKg,
		CapacityKg: v.CapacityKg,
		CapacityM3: v.CapacityM3,
		WheelType:  v.WheelType,
		BodyType:   v.BodyType,
		UF:         v.LicensingUF,
	}
}

// XMLObjectKey is the storage key of the authorized XML:
// <tenant>/<yyyy>/<mm>/<key>-mdfe.xml
func XMLObjectKey(m *Manifest) string {
	at := m.CreatedAt
	if m.IssuedAt != nil {
		at = *m.IssuedAt
	}
	return fmt.Sprintf("%s/%04d/%02d/%s-mdfe.xml", m.TenantID, at.Year(), int(at.Month()), m.AccessKey)
}
