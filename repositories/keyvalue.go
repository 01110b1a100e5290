package repositories

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"invoice-dashboard-backend/apperrors"
	"invoice-dashboard-backend/models"
	"invoice-dashboard-backend/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the key-value store calls.
type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// searchableAttributes are matched with case-sensitive contains(), OR-combined.
var searchableAttributes = []struct{ placeholder, path string }{
	{"#invoiceId", "invoiceId"},
	{"#numeroFactura", "numeroFactura"},
	{"#emisor.#razonSocial", "emisor.razonSocial"},
}

type KeyValueConfig struct {
	Table        string
	PartitionKey string
	SortKey      string
	DefaultLimit int
	MaxLimit     int
}

// KeyValueStore queries the tenant's partition of the invoices table. It is read-only.
type KeyValueStore struct {
	client DynamoAPI
	cfg    KeyValueConfig
}

func NewKeyValueStore(client DynamoAPI, cfg KeyValueConfig) *KeyValueStore {
	if cfg.PartitionKey == "" {
		cfg.PartitionKey = "tenantId"
	}
	if cfg.SortKey == "" {
		cfg.SortKey = "invoiceId"
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 200
	}
	return &KeyValueStore{client: client, cfg: cfg}
}

func (s *KeyValueStore) ready() error {
	if s.client == nil || strings.TrimSpace(s.cfg.Table) == "" {
		return apperrors.Configuration("key-value invoice table is not configured")
	}
	return nil
}

// List runs one partition-key query. Records come back sorted by issue date (falling back to
// creation time), newest first.
func (s *KeyValueStore) List(ctx context.Context, tenantID string, opts ListOptions) (Page, error) {
	if err := s.ready(); err != nil {
		return Page{}, err
	}

	limit := utils.ClampLimit(opts.Limit, s.cfg.DefaultLimit, s.cfg.MaxLimit)
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.cfg.Table),
		KeyConditionExpression: aws.String("#pk = :tenant"),
		ExpressionAttributeNames: map[string]string{
			"#pk": s.cfg.PartitionKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tenant": &types.AttributeValueMemberS{Value: tenantID},
		},
		Limit: aws.Int32(int32(limit)),
	}

	if term := strings.TrimSpace(opts.Search); term != "" {
		clauses := make([]string, 0, len(searchableAttributes))
		for _, attr := range searchableAttributes {
			clauses = append(clauses, "contains("+attr.placeholder+", :q)")
			placeholders := strings.Split(attr.placeholder, ".")
			for i, segment := range strings.Split(attr.path, ".") {
				input.ExpressionAttributeNames[placeholders[i]] = segment
			}
		}
		input.FilterExpression = aws.String(strings.Join(clauses, " OR "))
		input.ExpressionAttributeValues[":q"] = &types.AttributeValueMemberS{Value: term}
	}

	if start := s.startKey(tenantID, opts.Cursor); start != nil {
		input.ExclusiveStartKey = start
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return Page{}, apperrors.BackendUnavailable("query key-value invoices", err)
	}

	var items []map[string]any
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return Page{}, apperrors.BackendUnavailable("decode key-value invoices", err)
	}
	records := make([]models.RawRecord, len(items))
	for i, item := range items {
		records[i] = models.RawRecord(item)
	}
	SortNewestFirst(records)

	page := Page{Records: records}
	if len(out.LastEvaluatedKey) > 0 {
		var last map[string]any
		if err := attributevalue.UnmarshalMap(out.LastEvaluatedKey, &last); err != nil {
			return Page{}, apperrors.BackendUnavailable("decode key-value cursor", err)
		}
		page.NextCursor = utils.EncodeCursor(last)
	}
	return page, nil
}

// startKey decodes a cursor into an ExclusiveStartKey. Cursors that are garbled or that point
// into another tenant's partition are dropped, restarting from the first page.
func (s *KeyValueStore) startKey(tenantID, cursor string) map[string]types.AttributeValue {
	key := utils.DecodeCursor(cursor)
	if key == nil {
		return nil
	}
	// The table key is exactly {partition, sort}, both strings; anything else would be rejected
	// by the backend.
	pk, pkOK := key[s.cfg.PartitionKey].(string)
	sk, skOK := key[s.cfg.SortKey].(string)
	if len(key) != 2 || !pkOK || !skOK || sk == "" {
		slog.Warn("discarding malformed cursor", "tenant", tenantID)
		return nil
	}
	if pk != tenantID {
		slog.Warn("discarding cursor outside caller partition", "tenant", tenantID)
		return nil
	}
	return map[string]types.AttributeValue{
		s.cfg.PartitionKey: &types.AttributeValueMemberS{Value: pk},
		s.cfg.SortKey:      &types.AttributeValueMemberS{Value: sk},
	}
}

// GetByID fetches one item by its full primary key.
func (s *KeyValueStore) GetByID(ctx context.Context, tenantID, id string) (models.RawRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" || tenantID == "" {
		return nil, nil
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.cfg.Table),
		Key: map[string]types.AttributeValue{
			s.cfg.PartitionKey: &types.AttributeValueMemberS{Value: tenantID},
			s.cfg.SortKey:      &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, apperrors.BackendUnavailable("get key-value invoice", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item map[string]any
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, apperrors.BackendUnavailable("decode key-value invoice", err)
	}
	return models.RawRecord(item), nil
}

// SortNewestFirst orders records by issue date, then creation timestamp, both descending.
// Records without either date sort last.
func SortNewestFirst(records []models.RawRecord) {
	type sortKey struct{ primary, created time.Time }
	keys := make(map[int]sortKey, len(records))
	idx := make([]int, len(records))
	for i, r := range records {
		idx[i] = i
		created, _ := utils.ParseDate(firstPresent(r, "createdAt", "created_at", "fechaCreacion"))
		issued, ok := utils.ParseDate(firstPresent(r, "issueDate", "fechaEmision", "fecha_emision"))
		if !ok {
			issued = created
		}
		keys[i] = sortKey{primary: issued, created: created}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if !ka.primary.Equal(kb.primary) {
			return ka.primary.After(kb.primary)
		}
		return ka.created.After(kb.created)
	})
	sorted := make([]models.RawRecord, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}

func firstPresent(r models.RawRecord, names ...string) any {
	for _, n := range names {
		if v, ok := r[n]; ok && v != nil {
			return v
		}
	}
	return nil
}
