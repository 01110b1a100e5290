package models

// SourceKind names the backend a raw record was read from.
type SourceKind string

const (
	SourceRelational SourceKind = "relational"
	SourceKeyValue   SourceKind = "keyvalue"
)

// CanonicalInvoice is the single response shape every invoice route converges on.
// Monetary fields are plain JSON numbers; nil means the source value could not be parsed.
type CanonicalInvoice struct {
	ID            string `json:"id"`
	InvoiceID     string `json:"invoiceId"`
	NumeroFactura string `json:"numeroFactura"`
	TenantID      string `json:"tenantId"`

	IssuerTaxID   string `json:"issuerTaxId"`
	IssuerName    string `json:"issuerName"`
	ReceiverTaxID string `json:"receiverTaxId"`
	ReceiverName  string `json:"receiverName"`

	Subtotal *float64 `json:"subtotal"`
	Tax      *float64 `json:"tax"`
	Total    *float64 `json:"total"`
	Currency string   `json:"currency"`

	IssueDate *string `json:"issueDate"`
	DueDate   *string `json:"dueDate"`

	ExternalValidationStatus string   `json:"externalValidationStatus"`
	IsValid                  *bool    `json:"isValid"`
	ValidationReason         string   `json:"validationReason"`
	DocumentStatus           string   `json:"documentStatus"`
	RegistryStatus           string   `json:"registryStatus"`
	DomicileCondition        string   `json:"domicileCondition"`
	Observations             []string `json:"observations"`
	RegistryActive           bool     `json:"registryActive"`

	Engine string `json:"engine"`
	Status string `json:"status"`
	Route  string `json:"route"`

	Confidence map[string]int `json:"confidence"`

	Approved        *bool   `json:"approved"`
	ApprovedAt      *string `json:"approvedAt"`
	ApprovedBy      string  `json:"approvedBy"`
	ApprovalComment string  `json:"approvalComment"`

	FileName string        `json:"fileName"`
	Storage  ObjectLocator `json:"-"`

	Source    SourceKind `json:"source"`
	LineItems []LineItem `json:"lineItems,omitempty"`
}

// ObjectLocator identifies a stored source file in object storage.
type ObjectLocator struct {
	Bucket   string
	Key      string
	Filename string
}

// LineItem is one detail line of an invoice.
type LineItem struct {
	LineNumber         int      `json:"lineNumber"`
	ProductCode        string   `json:"productCode"`
	Description        string   `json:"description"`
	Quantity           *float64 `json:"quantity"`
	UnitOfMeasure      string   `json:"unitOfMeasure"`
	UnitPrice          *float64 `json:"unitPrice"`
	Discount           *float64 `json:"discount"`
	LineSubtotal       *float64 `json:"lineSubtotal"`
	LineTax            *float64 `json:"lineTax"`
	LineTotal          *float64 `json:"lineTotal"`
	TaxAffectationCode string   `json:"taxAffectationCode"`
}

// AggregateStats is recomputed on every request.
type AggregateStats struct {
	PendingCount            int                `json:"pendingCount"`
	PendingAmountByCurrency map[string]float64 `json:"pendingAmountByCurrency"`
	ApprovedTodayCount      int                `json:"approvedTodayCount"`
	OverdueCount            int                `json:"overdueCount"`
}
