package accounts

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service maintains the group hierarchy and its ledgers.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the account hierarchy service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// CreateGroup adds a group. Root groups must carry a type; child groups
// inherit theirs from the root and may not name one.
func (s *Service) CreateGroup(ctx context.Context, tenantID int64, in GroupInput) (Group, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Group{}, err
	}
	if err := checkRootType(in.Code, in.ParentID, in.Type); err != nil {
		return Group{}, err
	}
	var group Group
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.ParentID != nil {
			if _, err := tx.GetGroup(ctx, tenantID, *in.ParentID); err != nil {
				return err
			}
		}
		var err error
		group, err = tx.InsertGroup(ctx, tenantID, in)
		return err
	})
	if err != nil {
		return Group{}, err
	}
	s.logger.Info("group created", slog.Int64("tenant_id", tenantID), slog.Int64("group_id", group.ID), slog.String("code", group.Code))
	return group, nil
}

// UpdateGroupParent re-parents a group. Moving under a parent clears the
// stored type; a nil parent turns the group into a root, which keeps its type
// or takes the one supplied.
func (s *Service) UpdateGroupParent(ctx context.Context, tenantID, groupID int64, in MoveGroupInput) (Group, error) {
	var group Group
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockHierarchy(ctx, tenantID); err != nil {
			return err
		}
		groups, err := tx.ListGroups(ctx, tenantID)
		if err != nil {
			return err
		}
		h := NewHierarchy(groups)
		current, ok := h.Get(groupID)
		if !ok {
			return shared.NotFound("group", groupID)
		}
		typ := in.Type
		if in.ParentID != nil {
			if _, ok := h.Get(*in.ParentID); !ok {
				return shared.NotFound("group", *in.ParentID)
			}
			if h.WouldCycle(groupID, *in.ParentID) {
				return shared.Cycle(groupID, *in.ParentID)
			}
		} else if typ == nil {
			typ = current.Type
		}
		if err := checkRootType(current.Code, in.ParentID, typ); err != nil {
			return err
		}
		if err := tx.UpdateGroupParent(ctx, tenantID, groupID, in.ParentID, typ); err != nil {
			return err
		}
		current.ParentID = in.ParentID
		current.Type = typ
		group = current
		return nil
	})
	if err != nil {
		return Group{}, err
	}
	return group, nil
}

// checkRootType holds the rule that exactly the root groups store a type.
func checkRootType(code string, parentID *int64, typ *GroupType) error {
	if parentID != nil {
		if typ != nil {
			return shared.Validation("type_on_child", "group %s takes its type from its root", code)
		}
		return nil
	}
	if typ == nil {
		return shared.Validation("root_type_required", "root group %s needs a type", code)
	}
	if !typ.Valid() {
		return shared.Validation("invalid_type", "unknown group type %s", *typ)
	}
	return nil
}

// DeleteGroup removes an empty, non-system group.
func (s *Service) DeleteGroup(ctx context.Context, tenantID, groupID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockHierarchy(ctx, tenantID); err != nil {
			return err
		}
		group, err := tx.GetGroup(ctx, tenantID, groupID)
		if err != nil {
			return err
		}
		if group.IsSystem {
			return shared.InvalidState("system_group", "group %s is reserved", group.Code)
		}
		count, err := tx.CountGroupDependents(ctx, tenantID, groupID)
		if err != nil {
			return err
		}
		if count > 0 {
			return shared.InvalidState("group_in_use", "group %s has %d children or ledgers", group.Code, count)
		}
		return tx.DeleteGroup(ctx, tenantID, groupID)
	})
}

// ResolveEffectiveType walks to the root group and returns its type.
func (s *Service) ResolveEffectiveType(ctx context.Context, tenantID, groupID int64) (GroupType, error) {
	var out GroupType
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		groups, err := tx.ListGroups(ctx, tenantID)
		if err != nil {
			return err
		}
		out, err = NewHierarchy(groups).EffectiveType(groupID)
		return err
	})
	return out, err
}

// ListGroups returns the tenant's groups ordered by code.
func (s *Service) ListGroups(ctx context.Context, tenantID int64) ([]Group, error) {
	var groups []Group
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		groups, err = tx.ListGroups(ctx, tenantID)
		return err
	})
	return groups, err
}

// CreateLedger adds a ledger under an existing group. The state code falls
// back to the GSTIN prefix and must agree with it when both are given.
func (s *Service) CreateLedger(ctx context.Context, tenantID int64, in LedgerInput) (Ledger, error) {
	if in.OpeningSide == "" {
		in.OpeningSide = SideDebit
	}
	if err := shared.ValidateStruct(in); err != nil {
		return Ledger{}, err
	}
	if in.OpeningBalance.IsNegative() {
		return Ledger{}, shared.Validation("negative_opening_balance", "opening balance must be >= 0, use the opening side instead")
	}
	if in.GSTIN != "" {
		prefix := shared.StateFromGSTIN(in.GSTIN)
		if in.StateCode == "" {
			in.StateCode = prefix
		} else if in.StateCode != prefix {
			return Ledger{}, shared.Validation("state_gstin_mismatch", "state %s does not match gstin prefix %s", in.StateCode, prefix)
		}
		if in.PAN != "" && in.PAN != in.GSTIN[2:12] {
			return Ledger{}, shared.Validation("pan_gstin_mismatch", "pan does not match gstin")
		}
	}
	in.OpeningBalance = in.OpeningBalance.Round(2)
	var ledger Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetGroup(ctx, tenantID, in.GroupID); err != nil {
			return err
		}
		var err error
		ledger, err = tx.InsertLedger(ctx, tenantID, in)
		return err
	})
	if err != nil {
		return Ledger{}, err
	}
	s.logger.Info("ledger created", slog.Int64("tenant_id", tenantID), slog.Int64("ledger_id", ledger.ID), slog.String("code", ledger.Code))
	return ledger, nil
}

// GetLedger returns a ledger of the tenant.
func (s *Service) GetLedger(ctx context.Context, tenantID, ledgerID int64) (Ledger, error) {
	var ledger Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ledger, err = tx.GetLedger(ctx, tenantID, ledgerID)
		return err
	})
	return ledger, err
}

// ListLedgers returns the tenant's ledgers ordered by code.
func (s *Service) ListLedgers(ctx context.Context, tenantID int64) ([]Ledger, error) {
	var ledgers []Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ledgers, err = tx.ListLedgers(ctx, tenantID)
		return err
	})
	return ledgers, err
}
