package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Invoice is the relational row for one ingested invoice. Every row belongs to exactly one tenant and
// every query against this table must carry a tenant_id predicate.
//
// Only the current column names are declared here; older deployments may still carry legacy
// columns (importe_total, currency, ...) which the normalizer reads from the raw row map.
type Invoice struct {
	ID            string `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID      string `json:"tenant_id" gorm:"size:128;not null;index:idx_invoices_tenant_numero,unique,priority:1"`
	NumeroFactura string `json:"numero_factura" gorm:"size:64;not null;index:idx_invoices_tenant_numero,unique,priority:2"`
	Serie         string `json:"serie" gorm:"size:16"`
	Correlativo   string `json:"correlativo" gorm:"size:32"`

	// Parties
	RucEmisor           string `json:"ruc_emisor" gorm:"size:20"`
	RazonSocialEmisor   string `json:"razon_social_emisor"`
	RucReceptor         string `json:"ruc_receptor" gorm:"size:20"`
	RazonSocialReceptor string `json:"razon_social_receptor"`

	// Money
	Subtotal   *float64 `json:"subtotal" gorm:"type:numeric(14,2)"`
	Igv        *float64 `json:"igv" gorm:"type:numeric(14,2)"`
	MontoTotal *float64 `json:"monto_total" gorm:"type:numeric(14,2)"`
	Moneda     *string  `json:"moneda" gorm:"size:3"`

	FechaEmision     *time.Time `json:"fecha_emision" gorm:"type:date;index"`
	FechaVencimiento *time.Time `json:"fecha_vencimiento" gorm:"type:date"`

	// External (tax registry) validation
	EstadoSunat        string         `json:"estado_sunat"`
	EsValido           *bool          `json:"es_valido"`
	MotivoValidacion   string         `json:"motivo_validacion"`
	EstadoComprobante  string         `json:"estado_comprobante"`
	EstadoRuc          string         `json:"estado_ruc"`
	CondicionDomicilio string         `json:"condicion_domicilio"`
	Observaciones      datatypes.JSON `json:"observaciones" gorm:"type:jsonb"`

	// Ingestion provenance
	Engine           string `json:"engine"`
	ProcessingStatus string `json:"processing_status"`
	ProcessingRoute  string `json:"processing_route"`
	Confidence       string `json:"confidence"`

	// Approval: NULL = pending, true = approved, false = rejected
	Aprobado             *bool      `json:"aprobado" gorm:"index"`
	FechaAprobacion      *time.Time `json:"fecha_aprobacion"`
	AprobadoPor          string     `json:"aprobado_por"`
	ComentarioAprobacion string     `json:"comentario_aprobacion"`

	// Source file
	S3Bucket      string `json:"s3_bucket"`
	S3Key         string `json:"s3_key"`
	NombreArchivo string `json:"nombre_archivo"`

	Items []InvoiceItem `json:"items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
}

func (Invoice) TableName() string { return "invoices" }

func (invoice *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	return
}

// InvoiceItem is one detail line. It repeats tenant_id so line lookups stay tenant-scoped on their own.
type InvoiceItem struct {
	ID               uint     `json:"id" gorm:"primaryKey"`
	TenantID         string   `json:"tenant_id" gorm:"size:128;not null;index:idx_invoice_items_tenant_invoice,priority:1"`
	InvoiceID        string   `json:"invoice_id" gorm:"type:uuid;not null;index:idx_invoice_items_tenant_invoice,priority:2"`
	NumeroLinea      int      `json:"numero_linea"`
	CodigoProducto   string   `json:"codigo_producto"`
	Descripcion      string   `json:"descripcion"`
	Cantidad         *float64 `json:"cantidad" gorm:"type:numeric(14,4)"`
	UnidadMedida     string   `json:"unidad_medida" gorm:"size:8"`
	PrecioUnitario   *float64 `json:"precio_unitario" gorm:"type:numeric(14,4)"`
	Descuento        *float64 `json:"descuento" gorm:"type:numeric(14,2)"`
	Subtotal         *float64 `json:"subtotal" gorm:"type:numeric(14,2)"`
	Igv              *float64 `json:"igv" gorm:"type:numeric(14,2)"`
	Total            *float64 `json:"total" gorm:"type:numeric(14,2)"`
	CodigoAfectacion string   `json:"codigo_afectacion" gorm:"size:4"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }
