// Package vouchers turns drafted vouchers into balanced ledger entries and
// reverses them on cancellation.
package vouchers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/accounting/numbering"
	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/integration"
	"github.com/odyssey-erp/gstbooks/internal/masterdata/taxes"
	"github.com/odyssey-erp/gstbooks/internal/money"
	internalShared "github.com/odyssey-erp/gstbooks/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// RateResolver looks up the GST rate of an HSN/SAC code on a date.
type RateResolver interface {
	ResolveRate(ctx context.Context, hsnSac string, asOf time.Time) (taxes.Rate, error)
}

// ComplianceNotifier receives posted sales vouchers after commit.
type ComplianceNotifier interface {
	HandleVoucherPosted(ctx context.Context, evt integration.VoucherPostedEvent) error
}

// Observer records posting outcomes.
type Observer interface {
	ObserveVoucher(operation, kind, outcome string, elapsed time.Duration)
	ComplianceFailed()
}

// Deps wires the posting engine's collaborators.
type Deps struct {
	Repo      RepositoryPort
	Rates     RateResolver
	Tracker   *bills.Tracker
	Sequencer *numbering.Sequencer
	Notifier  ComplianceNotifier
	Observer  Observer
	Policy    money.Policy
	Logger    *slog.Logger
}

// Service is the voucher posting engine.
type Service struct {
	repo      RepositoryPort
	rates     RateResolver
	tracker   *bills.Tracker
	sequencer *numbering.Sequencer
	notifier  ComplianceNotifier
	observer  Observer
	policy    money.Policy
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the posting engine.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seq := d.Sequencer
	if seq == nil {
		seq = numbering.NewSequencer()
	}
	tracker := d.Tracker
	if tracker == nil {
		tracker = bills.NewTracker(nil, logger)
	}
	return &Service{
		repo:      d.Repo,
		rates:     d.Rates,
		tracker:   tracker,
		sequencer: seq,
		notifier:  d.Notifier,
		observer:  d.Observer,
		policy:    d.Policy,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateDraft validates the voucher shape for its kind and stores it as a
// draft. Drafts carry no number for automatic series and may be unbalanced.
func (s *Service) CreateDraft(ctx context.Context, in CreateDraftInput) (Voucher, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Voucher{}, err
	}
	draft := Voucher{
		TenantID:  in.TenantID,
		TypeID:    in.VoucherTypeID,
		Date:      dateOnly(in.Date),
		Reference: in.Reference,
		Narration: in.Narration,
		Status:    StatusDraft,
		Total:     decimal.Zero,
		CreatedBy: in.ActorID,
	}
	var created Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		vt, err := tx.GetVoucherType(ctx, in.VoucherTypeID)
		if err != nil {
			return err
		}
		draft.Kind = vt.Kind
		if draft.Number, err = draftNumber(vt, in.Number); err != nil {
			return err
		}
		var (
			items   []Item
			entries []Entry
		)
		switch body := in.Body.(type) {
		case Invoice:
			if !vt.Kind.IsInvoice() {
				return shared.Validation("body_kind_mismatch", "voucher type %s does not take line items", vt.Code)
			}
			if items, err = s.prepareInvoice(ctx, tx, &draft, body); err != nil {
				return err
			}
		case Settlement:
			if vt.Kind.IsInvoice() {
				return shared.Validation("body_kind_mismatch", "voucher type %s needs line items", vt.Code)
			}
			if entries, err = s.prepareSettlement(ctx, tx, &draft, body); err != nil {
				return err
			}
		default:
			return shared.Validation("missing_body", "voucher body is required")
		}
		inserted, err := tx.InsertVoucher(ctx, draft)
		if err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, inserted.ID, items); err != nil {
			return err
		}
		if err := tx.ReplaceEntries(ctx, in.TenantID, inserted.ID, entries); err != nil {
			return err
		}
		created, err = tx.GetVoucher(ctx, in.TenantID, inserted.ID, false)
		return err
	})
	if err != nil {
		return Voucher{}, err
	}
	s.logger.Info("voucher drafted",
		slog.Int64("tenant_id", created.TenantID),
		slog.Int64("voucher_id", created.ID),
		slog.String("kind", string(created.Kind)))
	return created, nil
}

func draftNumber(vt VoucherType, requested string) (*string, error) {
	switch vt.Numbering {
	case numbering.MethodManual:
		if err := numbering.ValidateManual(requested); err != nil {
			return nil, err
		}
		return &requested, nil
	default:
		if requested != "" {
			return nil, shared.Validation("manual_number_not_allowed", "voucher type %s numbers automatically", vt.Code)
		}
		return nil, nil
	}
}

func (s *Service) prepareInvoice(ctx context.Context, tx TxRepository, v *Voucher, body Invoice) ([]Item, error) {
	if body.PartyLedgerID <= 0 {
		return nil, shared.Validation("missing_party_ledger", "invoice needs a party ledger")
	}
	if len(body.Items) == 0 {
		return nil, shared.Validation("missing_items", "invoice needs at least one line")
	}
	if body.PlaceOfSupply != "" && !shared.ValidStateCode(body.PlaceOfSupply) {
		return nil, shared.Validation("invalid_place_of_supply", "unknown state code %s", body.PlaceOfSupply)
	}
	party, err := activeLedger(ctx, tx, v.TenantID, body.PartyLedgerID)
	if err != nil {
		return nil, err
	}
	checked := map[int64]bool{}
	checkLedger := func(id int64) error {
		if checked[id] {
			return nil
		}
		checked[id] = true
		_, err := activeLedger(ctx, tx, v.TenantID, id)
		return err
	}
	if body.ItemLedgerID != nil {
		if err := checkLedger(*body.ItemLedgerID); err != nil {
			return nil, err
		}
	}
	items := make([]Item, len(body.Items))
	for i, it := range body.Items {
		line := i + 1
		it.LineNo = line
		it.HSNSAC = taxes.NormalizeHSN(it.HSNSAC)
		switch {
		case it.ItemName == "":
			return nil, shared.Validation("missing_item_name", "line %d has no item name", line)
		case it.HSNSAC == "" && !it.RateOverride:
			return nil, shared.Validation("missing_hsn_sac", "line %d has no HSN/SAC code", line)
		case !it.Quantity.IsPositive():
			return nil, shared.Validation("invalid_quantity", "line %d quantity must be positive", line)
		case it.Rate.IsNegative() || it.Discount.IsNegative():
			return nil, shared.Validation("negative_amount", "line %d has a negative rate or discount", line)
		}
		if it.RateOverride && (it.CGSTRate.IsNegative() || it.SGSTRate.IsNegative() || it.IGSTRate.IsNegative() || it.CessRate.IsNegative()) {
			return nil, shared.Validation("negative_rate", "line %d has a negative tax rate", line)
		}
		it.Amount = LineAmount(s.policy, it.Quantity, it.Rate, it.Discount)
		if it.Amount.IsNegative() {
			return nil, shared.Validation("discount_exceeds_value", "line %d discount exceeds its value", line)
		}
		if it.LedgerID == nil && body.ItemLedgerID == nil {
			return nil, shared.Validation("missing_item_ledger", "line %d has no revenue or expense ledger", line)
		}
		if it.LedgerID != nil {
			if err := checkLedger(*it.LedgerID); err != nil {
				return nil, err
			}
		}
		if !it.RateOverride {
			it.CGSTRate, it.SGSTRate, it.IGSTRate, it.CessRate = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
		}
		it.CGSTAmount, it.SGSTAmount, it.IGSTAmount, it.CessAmount = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
		it.TotalAmount = it.Amount
		items[i] = it
	}
	v.PartyLedgerID = &party.ID
	v.ItemLedgerID = body.ItemLedgerID
	v.PlaceOfSupply = body.PlaceOfSupply
	v.DueDate = body.DueDate
	if v.DueDate == nil && party.CreditDays > 0 {
		due := v.Date.AddDate(0, 0, party.CreditDays)
		v.DueDate = &due
	}
	return items, nil
}

// activeLedger loads a ledger of the tenant and refuses deactivated ones.
func activeLedger(ctx context.Context, tx TxRepository, tenantID, id int64) (accounts.Ledger, error) {
	l, err := tx.GetLedger(ctx, tenantID, id)
	if err != nil {
		return accounts.Ledger{}, err
	}
	if !l.IsActive {
		return accounts.Ledger{}, shared.Validation("ledger_inactive", "ledger %d (%s) is inactive", l.ID, l.Name)
	}
	return l, nil
}

func (s *Service) prepareSettlement(ctx context.Context, tx TxRepository, v *Voucher, body Settlement) ([]Entry, error) {
	if err := ValidateEntries(body.Entries); err != nil {
		return nil, err
	}
	for _, id := range LedgerIDs(body.Entries) {
		if _, err := activeLedger(ctx, tx, v.TenantID, id); err != nil {
			return nil, err
		}
	}
	for i, ref := range body.BillRefs {
		if ref.BillID <= 0 || !ref.Amount.IsPositive() {
			return nil, shared.Validation("invalid_bill_ref", "bill reference %d needs a bill and a positive amount", i+1)
		}
	}
	v.BillRefs = body.BillRefs
	entries := make([]Entry, len(body.Entries))
	for i, e := range body.Entries {
		entries[i] = Entry{TenantID: v.TenantID, LedgerID: e.LedgerID, Debit: e.Debit, Credit: e.Credit}
	}
	return entries, nil
}

// Post moves a draft to POSTED: taxes, entries, balance check, number, bill
// tracking and audit happen in one transaction.
func (s *Service) Post(ctx context.Context, in PostInput) (PostResult, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return PostResult{}, err
	}
	start := s.now()
	var (
		result  PostResult
		company Company
		party   *accounts.Ledger
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result = PostResult{OnAccount: decimal.Zero}
		party = nil
		v, err := tx.GetVoucher(ctx, in.TenantID, in.VoucherID, true)
		if err != nil {
			return err
		}
		if v.Status != StatusDraft {
			return shared.InvalidState("voucher_not_draft", "voucher %d is %s", v.ID, v.Status)
		}
		vt, err := tx.GetVoucherType(ctx, v.TypeID)
		if err != nil {
			return err
		}
		if company, err = tx.GetCompany(ctx, in.TenantID); err != nil {
			return err
		}

		var entries []Entry
		switch body := v.Body().(type) {
		case Invoice:
			ledger, err := activeLedger(ctx, tx, in.TenantID, body.PartyLedgerID)
			if err != nil {
				return err
			}
			party = &ledger
			if body.PlaceOfSupply == "" {
				body.PlaceOfSupply = company.StateCode
				v.PlaceOfSupply = company.StateCode
			}
			interstate := IsInterstate(ledger.StateCode, body.PlaceOfSupply, company.StateCode)
			items, err := s.taxLines(ctx, v.Date, body.Items, interstate)
			if err != nil {
				return err
			}
			taxLedgers, err := tx.TaxLedgers(ctx, in.TenantID)
			if err != nil {
				return err
			}
			if entries, err = InvoiceEntries(v.Kind, body, items, taxLedgers); err != nil {
				return err
			}
			v.Items = items
		case Settlement:
			entries = body.Entries
		}

		entries = MergeEntries(entries)
		for _, id := range LedgerIDs(entries) {
			if _, err := activeLedger(ctx, tx, in.TenantID, id); err != nil {
				return err
			}
		}
		total, err := CheckBalance(entries)
		if err != nil {
			if errors.Is(err, shared.ErrUnbalanced) {
				s.logger.Error("unbalanced voucher rejected",
					slog.Int64("tenant_id", in.TenantID),
					slog.Int64("voucher_id", v.ID),
					slog.String("detail", err.Error()))
			}
			return err
		}

		number, err := s.sequencer.Assign(ctx, tx.Counter(), in.TenantID, vt.Series(), v.NumberOrEmpty())
		if err != nil {
			return err
		}
		now := s.now().UTC()
		v.Number = &number
		v.Total = total
		v.Status = StatusPosted
		v.PostedAt = &now
		v.PostedBy = &in.ActorID

		if v.Kind.IsInvoice() {
			if err := tx.ReplaceItems(ctx, v.ID, v.Items); err != nil {
				return err
			}
		}
		if err := tx.ReplaceEntries(ctx, in.TenantID, v.ID, entries); err != nil {
			return err
		}
		if err := tx.MarkPosted(ctx, v); err != nil {
			return err
		}

		if err := s.trackBills(ctx, tx, v, entries, party, &result); err != nil {
			return err
		}

		if err := tx.WriteAudit(ctx, internalShared.AuditLog{
			TenantID:   in.TenantID,
			ActorID:    in.ActorID,
			Action:     "voucher.post",
			EntityType: "voucher",
			EntityID:   strconv.FormatInt(v.ID, 10),
			OldValues:  map[string]any{"status": StatusDraft},
			NewValues: map[string]any{
				"status":         StatusPosted,
				"voucher_number": number,
				"total_amount":   total.StringFixed(s.policy.Places),
				"entries":        len(entries),
			},
			At: now,
		}); err != nil {
			return fmt.Errorf("vouchers: audit post: %w", err)
		}

		v.Entries = entries
		result.Voucher = v
		return nil
	})
	s.observe("post", result.Voucher.Kind, start, err)
	if err != nil {
		return PostResult{}, err
	}
	posted := result.Voucher
	s.logger.Info("voucher posted",
		slog.Int64("tenant_id", posted.TenantID),
		slog.Int64("voucher_id", posted.ID),
		slog.String("voucher_number", posted.NumberOrEmpty()),
		slog.String("total", s.policy.Format(posted.Total)))

	if posted.Kind == KindSale && company.EInvoiceEnabled {
		s.notifyPosted(ctx, posted, party)
	}
	return result, nil
}

func (s *Service) taxLines(ctx context.Context, date time.Time, items []Item, interstate bool) ([]Item, error) {
	lines := make([]Item, len(items))
	for i, it := range items {
		if it.RateOverride {
			lines[i] = NormalizeOverride(it, interstate)
			continue
		}
		if s.rates == nil {
			return nil, shared.RateNotFound(it.HSNSAC, date.Format(time.DateOnly))
		}
		rate, err := s.rates.ResolveRate(ctx, it.HSNSAC, date)
		if err != nil {
			return nil, err
		}
		lines[i] = ApplyRate(it, rate, interstate)
	}
	return ComputeTaxes(s.policy, lines), nil
}

// trackBills opens the bill of an invoice against a bill-wise party, or
// settles bills from the bill-wise ledgers a settlement voucher touches.
func (s *Service) trackBills(ctx context.Context, tx TxRepository, v Voucher, entries []Entry, party *accounts.Ledger, result *PostResult) error {
	btx := tx.Bills()
	if v.Kind.IsInvoice() {
		if party == nil || !party.BillWise {
			return nil
		}
		direction := bills.DirectionReceivable
		if v.Kind == KindPurchase {
			direction = bills.DirectionPayable
		}
		bill, err := s.tracker.OpenBillTx(ctx, btx, bills.OpenBillInput{
			TenantID:  v.TenantID,
			VoucherID: v.ID,
			LedgerID:  party.ID,
			Number:    v.NumberOrEmpty(),
			Date:      v.Date,
			Amount:    v.Total,
			Direction: direction,
			DueDate:   v.DueDate,
		})
		if err != nil {
			return err
		}
		result.Bill = &bill
		return nil
	}

	type settleKey struct {
		ledgerID  int64
		direction bills.Direction
	}
	refs := map[settleKey][]bills.Ref{}
	for _, ref := range v.BillRefs {
		bill, err := btx.GetBillForUpdate(ctx, v.TenantID, ref.BillID)
		if err != nil {
			return err
		}
		k := settleKey{bill.LedgerID, bill.Direction}
		refs[k] = append(refs[k], ref)
	}
	for _, e := range entries {
		ledger, err := tx.GetLedger(ctx, v.TenantID, e.LedgerID)
		if err != nil {
			return err
		}
		if !ledger.BillWise {
			continue
		}
		// Credits to a party clear what it owes us; debits clear what we owe it.
		direction, amount := bills.DirectionReceivable, e.Credit
		if e.Debit.IsPositive() {
			direction, amount = bills.DirectionPayable, e.Debit
		}
		k := settleKey{ledger.ID, direction}
		settled, err := s.tracker.SettleTx(ctx, btx, bills.SettleRequest{
			TenantID:  v.TenantID,
			LedgerID:  ledger.ID,
			Direction: direction,
			VoucherID: v.ID,
			Amount:    amount,
			Date:      v.Date,
			Refs:      refs[k],
		})
		if err != nil {
			return err
		}
		delete(refs, k)
		result.Settlements = append(result.Settlements, settled)
		result.OnAccount = result.OnAccount.Add(settled.Unallocated)
	}
	if len(refs) > 0 {
		unmatched := make([]int64, 0, len(refs))
		for k := range refs {
			unmatched = append(unmatched, k.ledgerID)
		}
		slices.Sort(unmatched)
		return shared.Validation("bill_ref_unmatched", "no entry settles bills of ledger %d", unmatched[0])
	}
	return nil
}

func (s *Service) notifyPosted(ctx context.Context, v Voucher, party *accounts.Ledger) {
	if s.notifier == nil {
		return
	}
	evt := integration.VoucherPostedEvent{
		TenantID:      v.TenantID,
		VoucherID:     v.ID,
		VoucherNumber: v.NumberOrEmpty(),
		VoucherDate:   v.Date,
		PlaceOfSupply: v.PlaceOfSupply,
		TotalAmount:   v.Total,
	}
	if party != nil {
		evt.PartyGSTIN = party.GSTIN
	}
	for _, it := range v.Items {
		evt.LineItems = append(evt.LineItems, integration.EInvoiceLine{
			LineNo:   it.LineNo,
			ItemName: it.ItemName,
			HSNSAC:   it.HSNSAC,
			Quantity: it.Quantity,
			Unit:     it.Unit,
			Rate:     it.Rate,
			Taxable:  it.Amount,
			CGST:     it.CGSTAmount,
			SGST:     it.SGSTAmount,
			IGST:     it.IGSTAmount,
			Cess:     it.CessAmount,
			Total:    it.TotalAmount,
		})
	}
	if err := s.notifier.HandleVoucherPosted(ctx, evt); err != nil {
		if s.observer != nil {
			s.observer.ComplianceFailed()
		}
		s.logger.Warn("compliance notification failed",
			slog.Int64("tenant_id", v.TenantID),
			slog.Int64("voucher_id", v.ID),
			slog.Any("error", err))
	}
}

// Cancel reverses a posted voucher with a new posted voucher carrying the
// opposite entries, and marks the original CANCELLED.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (CancelResult, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return CancelResult{}, err
	}
	start := s.now()
	var result CancelResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orig, err := tx.GetVoucher(ctx, in.TenantID, in.VoucherID, true)
		if err != nil {
			return err
		}
		if orig.Status != StatusPosted {
			return shared.InvalidState("voucher_not_posted", "voucher %d is %s", orig.ID, orig.Status)
		}
		if orig.ReversalOfID != nil {
			return shared.InvalidState("reversal_not_cancellable", "voucher %d reverses voucher %d", orig.ID, *orig.ReversalOfID)
		}
		vt, err := tx.GetVoucherType(ctx, orig.TypeID)
		if err != nil {
			return err
		}
		date := orig.Date
		if in.Date != nil {
			date = dateOnly(*in.Date)
			if date.Before(orig.Date) {
				return shared.Validation("reversal_before_original", "reversal date %s precedes voucher date %s", date.Format(time.DateOnly), orig.Date.Format(time.DateOnly))
			}
		}
		number, err := s.sequencer.AssignReversal(ctx, tx.Counter(), in.TenantID, vt.Series(), orig.NumberOrEmpty())
		if err != nil {
			return err
		}
		now := s.now().UTC()
		reversed := Reverse(orig.Entries)
		rev, err := tx.InsertVoucher(ctx, Voucher{
			TenantID:      in.TenantID,
			TypeID:        orig.TypeID,
			Kind:          orig.Kind,
			Number:        &number,
			Date:          date,
			Reference:     orig.NumberOrEmpty(),
			Narration:     fmt.Sprintf("Reversal of %s: %s", orig.NumberOrEmpty(), in.Reason),
			Total:         orig.Total,
			Status:        StatusPosted,
			PartyLedgerID: orig.PartyLedgerID,
			PlaceOfSupply: orig.PlaceOfSupply,
			ReversalOfID:  &orig.ID,
			PostedAt:      &now,
			PostedBy:      &in.ActorID,
			CreatedBy:     in.ActorID,
		})
		if err != nil {
			return err
		}
		if err := tx.ReplaceEntries(ctx, in.TenantID, rev.ID, reversed); err != nil {
			return err
		}

		orig.Status = StatusCancelled
		orig.CancelledAt = &now
		orig.CancelledBy = &in.ActorID
		orig.CancelReason = in.Reason
		orig.ReversedByID = &rev.ID
		if err := tx.MarkCancelled(ctx, orig); err != nil {
			return err
		}

		btx := tx.Bills()
		if _, err := s.tracker.ReverseVoucherTx(ctx, btx, in.TenantID, orig.ID, rev.ID, date); err != nil {
			return err
		}
		if err := s.tracker.VoidBillOfVoucherTx(ctx, btx, in.TenantID, orig.ID); err != nil {
			return err
		}

		if err := tx.WriteAudit(ctx, internalShared.AuditLog{
			TenantID:   in.TenantID,
			ActorID:    in.ActorID,
			Action:     "voucher.cancel",
			EntityType: "voucher",
			EntityID:   strconv.FormatInt(orig.ID, 10),
			OldValues:  map[string]any{"status": StatusPosted},
			NewValues: map[string]any{
				"status":          StatusCancelled,
				"reason":          in.Reason,
				"reversal_id":     rev.ID,
				"reversal_number": number,
			},
			At: now,
		}); err != nil {
			return fmt.Errorf("vouchers: audit cancel: %w", err)
		}

		rev.Entries = reversed
		result = CancelResult{Original: orig, Reversal: rev}
		return nil
	})
	s.observe("cancel", result.Original.Kind, start, err)
	if err != nil {
		return CancelResult{}, err
	}
	s.logger.Info("voucher cancelled",
		slog.Int64("tenant_id", in.TenantID),
		slog.Int64("voucher_id", result.Original.ID),
		slog.Int64("reversal_id", result.Reversal.ID))
	return result, nil
}

// DeleteDraft removes a draft with its lines and entries.
func (s *Service) DeleteDraft(ctx context.Context, tenantID, actorID, voucherID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetVoucher(ctx, tenantID, voucherID, true)
		if err != nil {
			return err
		}
		if v.Status != StatusDraft {
			return shared.InvalidState("voucher_not_draft", "voucher %d is %s", v.ID, v.Status)
		}
		if err := tx.DeleteVoucher(ctx, tenantID, voucherID); err != nil {
			return err
		}
		return tx.WriteAudit(ctx, internalShared.AuditLog{
			TenantID:   tenantID,
			ActorID:    actorID,
			Action:     "voucher.delete",
			EntityType: "voucher",
			EntityID:   strconv.FormatInt(voucherID, 10),
			OldValues:  map[string]any{"status": StatusDraft},
		})
	})
}

// Get returns a voucher with its lines and entries.
func (s *Service) Get(ctx context.Context, tenantID, voucherID int64) (Voucher, error) {
	var v Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		v, err = tx.GetVoucher(ctx, tenantID, voucherID, false)
		return err
	})
	return v, err
}

// List returns voucher headers matching filter, newest first.
func (s *Service) List(ctx context.Context, tenantID int64, filter ListFilter) ([]Voucher, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, shared.Validation("invalid_kind", "unknown voucher kind %s", filter.Kind)
	}
	var out []Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListVouchers(ctx, tenantID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Voucher{}
	}
	return out, nil
}

func (s *Service) observe(operation string, kind Kind, start time.Time, err error) {
	if s.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = shared.Reason(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	s.observer.ObserveVoucher(operation, string(kind), outcome, s.now().Sub(start))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
