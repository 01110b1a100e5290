package services

import (
	"context"
	"errors"
	"strings"

	"invoice-dashboard-backend/models"
	"invoice-dashboard-backend/repositories"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeRelational keeps rows per tenant and applies approvals the way the SQL store does.
type fakeRelational struct {
	rows      map[string][]models.RawRecord
	items     map[string][]models.RawRecord
	stats     models.AggregateStats
	err       error
	mutations int
	batches   [][]string
}

func (f *fakeRelational) List(_ context.Context, tenantID string, _ repositories.ListOptions) (repositories.Page, error) {
	if f.err != nil {
		return repositories.Page{}, f.err
	}
	return repositories.Page{Records: f.rows[tenantID]}, nil
}

func (f *fakeRelational) GetByID(_ context.Context, tenantID, id string) (models.RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows[tenantID] {
		if r["id"] == id || r["numero_factura"] == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRelational) ListPending(_ context.Context, tenantID string) ([]models.RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RawRecord
	for _, r := range f.rows[tenantID] {
		if r["aprobado"] == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRelational) ListApproved(_ context.Context, tenantID string) ([]models.RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RawRecord
	for _, r := range f.rows[tenantID] {
		if r["aprobado"] == true {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRelational) LineItems(_ context.Context, _ string, invoiceID string) ([]models.RawRecord, error) {
	return f.items[invoiceID], nil
}

func (f *fakeRelational) Stats(context.Context, string) (models.AggregateStats, error) {
	return f.stats, f.err
}

func (f *fakeRelational) Approve(_ context.Context, tenantID string, ids []string, actor, comment string) ([]string, error) {
	return f.set(tenantID, ids, true, actor, comment)
}

func (f *fakeRelational) Reject(_ context.Context, tenantID string, ids []string, actor, comment string) ([]string, error) {
	return f.set(tenantID, ids, false, actor, comment)
}

func (f *fakeRelational) set(tenantID string, ids []string, approved bool, actor, comment string) ([]string, error) {
	f.mutations++
	f.batches = append(f.batches, ids)
	if f.err != nil {
		return nil, f.err
	}
	var matched []string
	for _, id := range ids {
		for _, r := range f.rows[tenantID] {
			if r["numero_factura"] != id {
				continue
			}
			if r["aprobado"] != approved {
				r["aprobado"] = approved
				r["aprobado_por"] = actor
				r["comentario_aprobacion"] = comment
			}
			matched = append(matched, id)
		}
	}
	return matched, nil
}

// fakeKeyValue serves records keyed by tenant and invoiceId.
type fakeKeyValue struct {
	records map[string]map[string]models.RawRecord
	page    repositories.Page
	err     error
	lookups int
}

func (f *fakeKeyValue) List(context.Context, string, repositories.ListOptions) (repositories.Page, error) {
	return f.page, f.err
}

func (f *fakeKeyValue) GetByID(_ context.Context, tenantID, id string) (models.RawRecord, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[tenantID][id], nil
}

// fakePresigner records requests and returns a deterministic URL.
type fakePresigner struct {
	inputs  []*s3.GetObjectInput
	options []s3.PresignOptions
	err     error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.inputs = append(f.inputs, in)
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.options = append(f.options, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{
		URL:    "https://storage.example/" + *in.Bucket + "/" + strings.TrimPrefix(*in.Key, "/") + "?X-Amz-Signature=abc",
		Method: "GET",
	}, nil
}

var errBackend = errors.New("connection reset by peer")
