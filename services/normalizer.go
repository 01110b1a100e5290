package services

import (
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"invoice-dashboard-backend/models"
	"invoice-dashboard-backend/utils"

	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency   = "PEN"
	UnknownIDPart     = "UNKNOWN"
	registryActiveRUC = "00" // tax registry code for an active taxpayer
)

// accessor reads one candidate location for a canonical field.
type accessor func(models.RawRecord) (any, bool)

// at reads a (possibly nested) attribute. Nil and blank strings count as absent.
func at(keys ...string) accessor {
	return func(r models.RawRecord) (any, bool) {
		var cur any = map[string]any(r)
		for _, k := range keys {
			m, ok := asMap(cur)
			if !ok {
				return nil, false
			}
			if cur, ok = m[k]; !ok {
				return nil, false
			}
		}
		if cur == nil {
			return nil, false
		}
		if s, ok := cur.(string); ok && strings.TrimSpace(s) == "" {
			return nil, false
		}
		return cur, true
	}
}

// field is a preference-ordered chain: flat names (camelCase before snake_case) for every source,
// nested paths only for key-value items.
type field struct {
	flat   []accessor
	nested []accessor
}

func (f field) lookup(r models.RawRecord, kind models.SourceKind) (any, bool) {
	for _, get := range f.flat {
		if v, ok := get(r); ok {
			return v, true
		}
	}
	if kind != models.SourceKeyValue {
		return nil, false
	}
	for _, get := range f.nested {
		if v, ok := get(r); ok {
			return v, true
		}
	}
	return nil, false
}

func flat(a ...accessor) field { return field{flat: a} }

func (f field) orNested(a ...accessor) field {
	f.nested = append(f.nested, a...)
	return f
}

var invoiceFields = struct {
	id, invoiceID, numeroFactura, serie, correlativo, tenantID                                  field
	issuerTaxID, issuerName, receiverTaxID, receiverName                                       field
	subtotal, tax, total, currency, issueDate, dueDate                                         field
	validationStatus, isValid, validationReason, documentStatus, registryStatus, domicile, obs field
	engine, status, route, confidence                                                          field
	approved, approvedAt, approvedBy, approvalComment                                          field
	bucket, key, filename, items                                                               field
}{
	id:            flat(at("id"), at("invoiceId"), at("invoice_id")),
	invoiceID:     flat(at("invoiceId"), at("invoice_id"), at("numeroFactura"), at("numero_factura")).orNested(at("documento", "numero")),
	numeroFactura: flat(at("numeroFactura"), at("numero_factura")).orNested(at("documento", "numeroFactura")),
	serie:         flat(at("serie")).orNested(at("documento", "serie")),
	correlativo:   flat(at("correlativo"), at("numero")).orNested(at("documento", "correlativo")),
	tenantID:      flat(at("tenantId"), at("tenant_id")),

	issuerTaxID:   flat(at("issuerTaxId"), at("rucEmisor"), at("ruc_emisor")).orNested(at("emisor", "ruc"), at("emisor", "numeroDocumento")),
	issuerName:    flat(at("issuerName"), at("razonSocialEmisor"), at("razon_social_emisor")).orNested(at("emisor", "razonSocial"), at("emisor", "nombre")),
	receiverTaxID: flat(at("receiverTaxId"), at("rucReceptor"), at("ruc_receptor")).orNested(at("receptor", "ruc"), at("receptor", "numeroDocumento")),
	receiverName:  flat(at("receiverName"), at("razonSocialReceptor"), at("razon_social_receptor")).orNested(at("receptor", "razonSocial"), at("receptor", "nombre")),

	subtotal: flat(at("subtotal"), at("subTotal"), at("sub_total")).orNested(at("totales", "subtotal"), at("totales", "valorVenta")),
	tax:      flat(at("tax"), at("igv"), at("montoIgv"), at("monto_igv")).orNested(at("totales", "igv")),
	total:    flat(at("montoTotal"), at("total"), at("monto_total"), at("importe_total")).orNested(at("totales", "total"), at("totales", "importeTotal")),
	currency: flat(at("currency"), at("moneda"), at("tipoMoneda"), at("tipo_moneda")).orNested(at("totales", "moneda")),

	issueDate: flat(at("issueDate"), at("fechaEmision"), at("fecha_emision")).orNested(at("documento", "fechaEmision")),
	dueDate:   flat(at("dueDate"), at("fechaVencimiento"), at("fecha_vencimiento")).orNested(at("documento", "fechaVencimiento")),

	validationStatus: flat(at("externalValidationStatus"), at("estadoSunat"), at("estado_sunat")).orNested(at("validacionSunat", "estado")),
	isValid:          flat(at("isValid"), at("esValido"), at("es_valido")).orNested(at("validacionSunat", "esValido")),
	validationReason: flat(at("validationReason"), at("motivoValidacion"), at("motivo_validacion")).orNested(at("validacionSunat", "motivo")),
	documentStatus:   flat(at("documentStatus"), at("estadoComprobante"), at("estado_comprobante")).orNested(at("validacionSunat", "estadoComprobante")),
	registryStatus:   flat(at("registryStatus"), at("estadoRuc"), at("estado_ruc")).orNested(at("validacionSunat", "estadoRuc")),
	domicile:         flat(at("domicileCondition"), at("condicionDomicilio"), at("condicion_domicilio")).orNested(at("validacionSunat", "condicionDomicilio")),
	obs:              flat(at("observations"), at("observaciones")).orNested(at("validacionSunat", "observaciones")),

	engine:     flat(at("engine")).orNested(at("procesamiento", "engine"), at("processing", "engine")),
	status:     flat(at("processingStatus"), at("processing_status"), at("status")).orNested(at("procesamiento", "status"), at("processing", "status")),
	route:      flat(at("processingRoute"), at("processing_route"), at("route")).orNested(at("procesamiento", "route"), at("processing", "route")),
	confidence: flat(at("confidence"), at("engineConfidence")).orNested(at("procesamiento", "confidence"), at("processing", "confidence")),

	approved:        flat(at("approved"), at("aprobado")),
	approvedAt:      flat(at("approvedAt"), at("fechaAprobacion"), at("fecha_aprobacion")),
	approvedBy:      flat(at("approvedBy"), at("aprobadoPor"), at("aprobado_por")),
	approvalComment: flat(at("approvalComment"), at("comentarioAprobacion"), at("comentario_aprobacion")),

	bucket:   flat(at("s3Bucket"), at("s3_bucket")).orNested(at("archivo", "s3Bucket"), at("archivo", "bucket")),
	key:      flat(at("s3Key"), at("s3_key")).orNested(at("archivo", "s3Key"), at("archivo", "key")),
	filename: flat(at("fileName"), at("nombreArchivo"), at("nombre_archivo")).orNested(at("archivo", "nombreArchivo"), at("archivo", "fileName")),
	items:    flat(at("lineItems"), at("items")).orNested(at("detalle")),
}

var lineFields = struct {
	number, productCode, description, quantity, uom, unitPrice field
	discount, subtotal, tax, total, affectation                field
}{
	number:      flat(at("lineNumber"), at("numeroLinea"), at("numero_linea")),
	productCode: flat(at("productCode"), at("codigoProducto"), at("codigo_producto")),
	description: flat(at("description"), at("descripcion")),
	quantity:    flat(at("quantity"), at("cantidad")),
	uom:         flat(at("unitOfMeasure"), at("unidadMedida"), at("unidad_medida")),
	unitPrice:   flat(at("unitPrice"), at("precioUnitario"), at("precio_unitario"), at("valorUnitario")),
	discount:    flat(at("discount"), at("descuento")),
	subtotal:    flat(at("lineSubtotal"), at("subtotal"), at("valorVenta")),
	tax:         flat(at("lineTax"), at("igv")),
	total:       flat(at("lineTotal"), at("total"), at("importe")),
	affectation: flat(at("taxAffectationCode"), at("codigoAfectacion"), at("codigo_afectacion"), at("tipoAfectacionIgv")),
}

// Normalize maps a raw backend record onto the canonical invoice shape. It never fails: absent
// fields take their defaults and unparsable numbers or dates become null.
func Normalize(raw models.RawRecord, kind models.SourceKind) models.CanonicalInvoice {
	f := invoiceFields
	str := func(fl field) string { return stringValue(fl, raw, kind) }

	invoiceID := str(f.invoiceID)
	if invoiceID == "" {
		invoiceID = composeBusinessID(str(f.serie), str(f.correlativo))
	}
	numero := str(f.numeroFactura)
	if numero == "" {
		numero = invoiceID
	}
	id := str(f.id)
	if id == "" {
		id = invoiceID
	}

	currency := strings.ToUpper(str(f.currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	inv := models.CanonicalInvoice{
		ID:            id,
		InvoiceID:     invoiceID,
		NumeroFactura: numero,
		TenantID:      str(f.tenantID),

		IssuerTaxID:   str(f.issuerTaxID),
		IssuerName:    str(f.issuerName),
		ReceiverTaxID: str(f.receiverTaxID),
		ReceiverName:  str(f.receiverName),

		Subtotal: moneyValue(f.subtotal, raw, kind),
		Tax:      moneyValue(f.tax, raw, kind),
		Total:    moneyValue(f.total, raw, kind),
		Currency: currency,

		IssueDate: dateValue(f.issueDate, raw, kind),
		DueDate:   dateValue(f.dueDate, raw, kind),

		ExternalValidationStatus: str(f.validationStatus),
		IsValid:                  boolValue(f.isValid, raw, kind),
		ValidationReason:         str(f.validationReason),
		DocumentStatus:           str(f.documentStatus),
		RegistryStatus:           str(f.registryStatus),
		DomicileCondition:        str(f.domicile),
		Observations:             stringList(f.obs, raw, kind),

		Engine: str(f.engine),
		Status: str(f.status),
		Route:  str(f.route),

		Approved:        boolValue(f.approved, raw, kind),
		ApprovedBy:      str(f.approvedBy),
		ApprovalComment: str(f.approvalComment),

		Storage: models.ObjectLocator{
			Bucket:   str(f.bucket),
			Key:      strings.TrimPrefix(str(f.key), "/"),
			Filename: str(f.filename),
		},
		Source: kind,
	}

	if v, ok := f.approvedAt.lookup(raw, kind); ok {
		inv.ApprovedAt = utils.FormatTimestamp(v)
	}
	inv.RegistryActive = inv.RegistryStatus == registryActiveRUC
	inv.Confidence = ConfidenceFor(str(f.confidence))
	if inv.Storage.Filename == "" && inv.Storage.Key != "" {
		inv.Storage.Filename = path.Base(inv.Storage.Key)
	}
	inv.FileName = inv.Storage.Filename
	return inv
}

// NormalizeDetail normalizes the record and attaches its line items. Relational callers pass the
// rows of the item table; key-value records carry their items inline and itemRows is ignored.
func NormalizeDetail(raw models.RawRecord, kind models.SourceKind, itemRows []models.RawRecord) models.CanonicalInvoice {
	inv := Normalize(raw, kind)
	if kind == models.SourceKeyValue {
		if v, ok := invoiceFields.items.lookup(raw, kind); ok {
			itemRows = recordList(v)
		}
	}
	inv.LineItems = NormalizeLineItems(itemRows)
	return inv
}

// NormalizeLineItems keeps input order; a missing line number becomes the 1-based position.
func NormalizeLineItems(rows []models.RawRecord) []models.LineItem {
	f := lineFields
	items := make([]models.LineItem, 0, len(rows))
	for i, r := range rows {
		kind := models.SourceRelational
		line := models.LineItem{
			LineNumber:         i + 1,
			ProductCode:        stringValue(f.productCode, r, kind),
			Description:        stringValue(f.description, r, kind),
			Quantity:           numberValue(f.quantity, r, kind, 4),
			UnitOfMeasure:      stringValue(f.uom, r, kind),
			UnitPrice:          numberValue(f.unitPrice, r, kind, 4),
			Discount:           moneyValue(f.discount, r, kind),
			LineSubtotal:       moneyValue(f.subtotal, r, kind),
			LineTax:            moneyValue(f.tax, r, kind),
			LineTotal:          moneyValue(f.total, r, kind),
			TaxAffectationCode: stringValue(f.affectation, r, kind),
		}
		if v, ok := f.number.lookup(r, kind); ok {
			if d, ok := utils.ParseDecimal(v); ok && d.IsPositive() {
				line.LineNumber = int(d.IntPart())
			}
		}
		items = append(items, line)
	}
	return items
}

// ConfidenceFor maps the engine's coarse confidence tag onto the per-field scores list views show.
// The three tiers are a display heuristic, not a statistical measure.
func ConfidenceFor(tag string) map[string]int {
	score := 50
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "high":
		score = 95
	case "medium":
		score = 75
	}
	return map[string]int{
		"invoiceId": score,
		"issuer":    score,
		"amounts":   score,
		"dates":     score,
	}
}

// Summarize derives the dashboard counters from already-normalized invoices.
func Summarize(invoices []models.CanonicalInvoice, now time.Time) models.AggregateStats {
	today := now.Format(utils.DateLayout)
	stats := models.AggregateStats{PendingAmountByCurrency: map[string]float64{}}
	sums := map[string]decimal.Decimal{}
	for _, inv := range invoices {
		switch {
		case inv.Approved == nil:
			stats.PendingCount++
			if inv.Total != nil {
				sums[inv.Currency] = sums[inv.Currency].Add(decimal.NewFromFloat(*inv.Total))
			} else if _, seen := sums[inv.Currency]; !seen {
				sums[inv.Currency] = decimal.Zero
			}
			if inv.DueDate != nil && *inv.DueDate < today {
				stats.OverdueCount++
			}
		case *inv.Approved && inv.ApprovedAt != nil:
			if t, ok := utils.ParseDate(*inv.ApprovedAt); ok && t.In(now.Location()).Format(utils.DateLayout) == today {
				stats.ApprovedTodayCount++
			}
		}
	}
	for cur, sum := range sums {
		stats.PendingAmountByCurrency[cur] = utils.MoneyFloat(sum)
	}
	return stats
}

func composeBusinessID(serie, correlativo string) string {
	if serie == "" {
		serie = UnknownIDPart
	}
	if correlativo == "" {
		correlativo = UnknownIDPart
	}
	return serie + "-" + correlativo
}

func stringValue(f field, r models.RawRecord, kind models.SourceKind) string {
	v, ok := f.lookup(r, kind)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []byte:
		return strings.TrimSpace(string(s))
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.Format(time.RFC3339)
	case fmt.Stringer:
		return s.String()
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

// numberValue is 0 when the field is absent and nil when it is present but unparsable.
func numberValue(f field, r models.RawRecord, kind models.SourceKind, places int32) *float64 {
	v, ok := f.lookup(r, kind)
	if !ok {
		zero := 0.0
		return &zero
	}
	d, ok := utils.ParseDecimal(v)
	if !ok {
		return nil
	}
	out, _ := d.Round(places).Float64()
	return &out
}

func moneyValue(f field, r models.RawRecord, kind models.SourceKind) *float64 {
	return numberValue(f, r, kind, 2)
}

func dateValue(f field, r models.RawRecord, kind models.SourceKind) *string {
	v, ok := f.lookup(r, kind)
	if !ok {
		return nil
	}
	return utils.FormatDate(v)
}

func boolValue(f field, r models.RawRecord, kind models.SourceKind) *bool {
	v, ok := f.lookup(r, kind)
	if !ok {
		return nil
	}
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case *bool:
		if t == nil {
			return nil
		}
		b = *t
	case float64:
		b = t != 0
	case int64:
		b = t != 0
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		b = parsed
	default:
		return nil
	}
	return &b
}

// stringList accepts a native list, a JSON array (jsonb columns arrive as bytes) or a single string.
func stringList(f field, r models.RawRecord, kind models.SourceKind) []string {
	out := []string{}
	v, ok := f.lookup(r, kind)
	if !ok {
		return out
	}
	if decoded, ok := decodeJSON(v); ok {
		v = decoded
	}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func recordList(v any) []models.RawRecord {
	if decoded, ok := decodeJSON(v); ok {
		v = decoded
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]models.RawRecord, 0, len(list))
	for _, item := range list {
		if m, ok := asMap(item); ok {
			out = append(out, models.RawRecord(m))
		}
	}
	return out
}

// decodeJSON unpacks JSON arrays stored as text or bytes.
func decodeJSON(v any) (any, bool) {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case json.RawMessage:
		raw = t
	case string:
		if !strings.HasPrefix(strings.TrimSpace(t), "[") {
			return nil, false
		}
		raw = []byte(t)
	default:
		return nil, false
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case models.RawRecord:
		return m, true
	}
	return nil, false
}
