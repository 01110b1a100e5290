package services

import (
	"context"
	"strings"

	"invoice-dashboard-backend/apperrors"
	"invoice-dashboard-backend/models"

	"github.com/samber/lo"
)

// ApprovalStore is the write side of the relational store. The key-value store has no counterpart.
type ApprovalStore interface {
	Approve(ctx context.Context, tenantID string, ids []string, actor, comment string) ([]string, error)
	Reject(ctx context.Context, tenantID string, ids []string, actor, comment string) ([]string, error)
}

type ApprovalResult struct {
	ApprovedIDs []string `json:"approvedIds"`
	Count       int      `json:"count"`
}

type RejectionResult struct {
	RejectedIDs []string `json:"rejectedIds"`
	Count       int      `json:"count"`
}

// Approver applies batch approval transitions with one mutation per batch.
type Approver struct {
	store ApprovalStore
}

func NewApprover(store ApprovalStore) *Approver {
	return &Approver{store: store}
}

// Approve returns exactly the ids the mutation matched for this tenant; unknown ids are dropped
// without error.
func (a *Approver) Approve(ctx context.Context, tenant models.TenantContext, invoiceIDs []string, comment string) (ApprovalResult, error) {
	ids, err := batchIDs(invoiceIDs)
	if err != nil {
		return ApprovalResult{}, err
	}
	approved, err := a.store.Approve(ctx, tenant.TenantID, ids, tenant.Actor(), comment)
	if err != nil {
		return ApprovalResult{}, err
	}
	if approved == nil {
		approved = []string{}
	}
	return ApprovalResult{ApprovedIDs: approved, Count: len(approved)}, nil
}

func (a *Approver) Reject(ctx context.Context, tenant models.TenantContext, invoiceIDs []string, comment string) (RejectionResult, error) {
	ids, err := batchIDs(invoiceIDs)
	if err != nil {
		return RejectionResult{}, err
	}
	rejected, err := a.store.Reject(ctx, tenant.TenantID, ids, tenant.Actor(), comment)
	if err != nil {
		return RejectionResult{}, err
	}
	if rejected == nil {
		rejected = []string{}
	}
	return RejectionResult{RejectedIDs: rejected, Count: len(rejected)}, nil
}

func batchIDs(invoiceIDs []string) ([]string, error) {
	ids := lo.Uniq(lo.Compact(lo.Map(invoiceIDs, func(id string, _ int) string {
		return strings.TrimSpace(id)
	})))
	if len(ids) == 0 {
		return nil, apperrors.InvalidArgument("invoiceIds must be a non-empty list")
	}
	return ids, nil
}
