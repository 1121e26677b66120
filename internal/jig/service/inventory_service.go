package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/porast/jigman/internal/jig/entity"
	"github.com/porast/jigman/internal/jig/sse"
	"github.com/porast/jigman/internal/jig/store"
)

var (
	// ErrNotFound means a lifecycle operation referenced a store id that is
	// no longer in the cache.
	ErrNotFound = errors.New("jig not found")
	// ErrDuplicateCode means a create collided with a live JIG code.
	ErrDuplicateCode = errors.New("jig code already exists")
	// ErrValidation means a malformed draft or record was rejected before
	// any store call.
	ErrValidation = errors.New("validation failed")
)

var (
	customerPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)
	serialPattern   = regexp.MustCompile(`^[0-9]{3}$`)
)

// FallbackRecipient attributes transfer entries when no user is known.
const FallbackRecipient = "System"

// CreateJigInput is a registration draft. The code is composed as
// PREFIX_CUSTOMER_SERIAL with the customer upper-cased.
type CreateJigInput struct {
	Prefix            string `json:"prefix"`
	Customer          string `json:"customer"`
	Serial            string `json:"serial"`
	ProductModelType  string `json:"productModelType"`
	ReceivedFrom      string `json:"receivedFrom"`
	StorageLocation   string `json:"storageLocation"`
	ResponsiblePerson string `json:"responsiblePerson"`
	Notes             string `json:"notes"`
}

// InventoryService owns the in-memory mirror of the JIG collection, the
// three filter inputs and the lifecycle operations. The cache is refreshed
// by the store's change feed, not by the operations' return values: after
// a mutation the next snapshot carries whatever the store ended up holding.
type InventoryService struct {
	store  store.Store
	hub    *sse.Hub
	logger *zap.Logger
	clock  func() time.Time

	mu             sync.RWMutex
	jigs           []entity.Jig
	searchFilter   string
	customerFilter string
	statusFilter   entity.Status

	sub *store.Subscription
}

// NewInventoryService creates the service. Start must be called to attach
// it to the store's change feed.
func NewInventoryService(st store.Store, hub *sse.Hub, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		store:  st,
		hub:    hub,
		logger: logger,
		clock:  time.Now,
	}
}

// Start subscribes to the store and keeps the cache current until ctx is
// cancelled or Stop is called.
func (s *InventoryService) Start(ctx context.Context) error {
	sub, err := s.store.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to jig collection: %w", err)
	}
	s.sub = sub

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot, ok := <-sub.C:
				if !ok {
					return
				}
				s.ReplaceAll(snapshot)
				if s.hub != nil {
					s.hub.PublishInventoryUpdate("refresh", "")
				}
			}
		}
	}()

	return nil
}

// Stop detaches from the change feed.
func (s *InventoryService) Stop() {
	if s.sub != nil {
		s.sub.Close()
	}
}

// ReplaceAll swaps the cached sequence wholesale. No diffing against the
// previous snapshot; correctness does not depend on minimal changes.
func (s *InventoryService) ReplaceAll(jigs []entity.Jig) {
	copied := make([]entity.Jig, len(jigs))
	for i, jig := range jigs {
		copied[i] = jig.Clone()
	}
	s.mu.Lock()
	s.jigs = copied
	s.mu.Unlock()
}

// RefreshNow reloads the cache synchronously. Operations do not need it
// (the change feed refreshes them); it exists for startup and tests.
func (s *InventoryService) RefreshNow(ctx context.Context) error {
	jigs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("refresh jig cache: %w", err)
	}
	s.ReplaceAll(jigs)
	return nil
}

// Jigs returns a copy of the full cached sequence, receipt date descending.
func (s *InventoryService) Jigs() []entity.Jig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Jig, len(s.jigs))
	for i, jig := range s.jigs {
		out[i] = jig.Clone()
	}
	return out
}

// SetSearchFilter sets the free-text filter input.
func (s *InventoryService) SetSearchFilter(q string) {
	s.mu.Lock()
	s.searchFilter = q
	s.mu.Unlock()
}

// SetCustomerFilter sets the customer-equality filter input.
func (s *InventoryService) SetCustomerFilter(customer string) {
	s.mu.Lock()
	s.customerFilter = customer
	s.mu.Unlock()
}

// SetStatusFilter sets the status-equality filter input. An empty status
// matches everything.
func (s *InventoryService) SetStatusFilter(status entity.Status) {
	s.mu.Lock()
	s.statusFilter = status
	s.mu.Unlock()
}

// FilteredJigs derives the filtered view: the three predicates ANDed, the
// cache order preserved. Recomputed on every call; the collection stays in
// the tens-to-hundreds range.
func (s *InventoryService) FilteredJigs() []entity.Jig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(s.searchFilter)
	out := make([]entity.Jig, 0, len(s.jigs))
	for _, jig := range s.jigs {
		if search != "" {
			matches := strings.Contains(strings.ToLower(jig.Code), search) ||
				strings.Contains(strings.ToLower(jig.Customer), search) ||
				strings.Contains(strings.ToLower(jig.ProductModelType), search)
			if !matches {
				continue
			}
		}
		if s.customerFilter != "" && jig.Customer != s.customerFilter {
			continue
		}
		if s.statusFilter != "" && jig.Status != s.statusFilter {
			continue
		}
		out = append(out, jig.Clone())
	}
	return out
}

// UniqueCustomers derives the distinct customer names over the full cache,
// sorted ascending. Independent of the filter inputs.
func (s *InventoryService) UniqueCustomers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.jigs))
	out := make([]string, 0, len(s.jigs))
	for _, jig := range s.jigs {
		if _, ok := seen[jig.Customer]; ok {
			continue
		}
		seen[jig.Customer] = struct{}{}
		out = append(out, jig.Customer)
	}
	sort.Strings(out)
	return out
}

// IsCodeTaken reports whether any live JIG carries the code,
// case-insensitively. Advisory only: it checks the current in-memory
// snapshot, so two concurrent creators on different clients can still
// race past it. The store enforces no uniqueness.
func (s *InventoryService) IsCodeTaken(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByCodeLocked(code) != nil
}

func (s *InventoryService) findByCodeLocked(code string) *entity.Jig {
	for i := range s.jigs {
		if strings.EqualFold(s.jigs[i].Code, code) {
			return &s.jigs[i]
		}
	}
	return nil
}

func (s *InventoryService) findByStoreID(id string) (entity.Jig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.jigs {
		if s.jigs[i].StoreID == id {
			return s.jigs[i].Clone(), true
		}
	}
	return entity.Jig{}, false
}

// FindByStoreID returns the cached JIG with the given opaque id.
func (s *InventoryService) FindByStoreID(id string) (*entity.Jig, error) {
	jig, ok := s.findByStoreID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &jig, nil
}

// AddJig validates a registration draft, composes the code and submits the
// new record with status In Stock and empty histories.
func (s *InventoryService) AddJig(ctx context.Context, input CreateJigInput) (*entity.Jig, error) {
	if err := validateDraft(input); err != nil {
		return nil, err
	}

	prefix := strings.TrimSpace(input.Prefix)
	if prefix == "" {
		prefix = "J"
	}
	code := fmt.Sprintf("%s_%s_%s", prefix, strings.ToUpper(input.Customer), input.Serial)

	if s.IsCodeTaken(code) {
		return nil, fmt.Errorf("code %s: %w", code, ErrDuplicateCode)
	}

	jig := entity.Jig{
		Code:               code,
		Customer:           input.Customer,
		DateOfReceive:      s.clock(),
		ProductModelType:   input.ProductModelType,
		ReceivedFrom:       input.ReceivedFrom,
		StorageLocation:    input.StorageLocation,
		ResponsiblePerson:  input.ResponsiblePerson,
		Status:             entity.StatusInStock,
		Notes:              strings.TrimSpace(input.Notes),
		MaintenanceHistory: []entity.MaintenanceRecord{},
		TransferHistory:    []entity.TransferRecord{},
	}

	id, err := s.store.Create(ctx, jig)
	if err != nil {
		return nil, fmt.Errorf("add jig %s: %w", code, err)
	}
	jig.StoreID = id

	s.logger.Info("JIG registered",
		zap.String("code", code), zap.String("store_id", id))
	return &jig, nil
}

func validateDraft(input CreateJigInput) error {
	if !customerPattern.MatchString(input.Customer) {
		return fmt.Errorf("%w: customer code must be exactly 3 letters", ErrValidation)
	}
	if !serialPattern.MatchString(input.Serial) {
		return fmt.Errorf("%w: serial must be exactly 3 digits", ErrValidation)
	}
	required := map[string]string{
		"productModelType":  input.ProductModelType,
		"receivedFrom":      input.ReceivedFrom,
		"storageLocation":   input.StorageLocation,
		"responsiblePerson": input.ResponsiblePerson,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, field)
		}
	}
	return nil
}

// ChangeStatus moves the JIG to newStatus and appends a transfer entry in
// the same update. Any status may move to any other; transitions are
// recorded, never rejected.
func (s *InventoryService) ChangeStatus(ctx context.Context, storeID string, newStatus entity.Status, actor string) (*entity.Jig, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}

	jig, ok := s.findByStoreID(storeID)
	if !ok {
		return nil, fmt.Errorf("store id %s: %w", storeID, ErrNotFound)
	}

	direction := entity.TransferSubmission
	if newStatus == entity.StatusInStock {
		direction = entity.TransferAcceptance
	}
	recipient := strings.TrimSpace(actor)
	if recipient == "" {
		recipient = FallbackRecipient
	}

	transfer := entity.TransferRecord{
		Date:      s.clock(),
		Type:      direction,
		From:      jig.Status.Location(),
		To:        newStatus.Location(),
		Recipient: recipient,
		Notes:     fmt.Sprintf("Status changed from %s to %s", jig.Status, newStatus),
	}

	oldStatus := jig.Status
	jig.Status = newStatus
	jig.TransferHistory = append(jig.TransferHistory, transfer)

	if err := s.store.Update(ctx, storeID, jig); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("store id %s: %w", storeID, ErrNotFound)
		}
		return nil, fmt.Errorf("change status of %s: %w", jig.Code, err)
	}

	s.logger.Info("JIG status changed",
		zap.String("code", jig.Code),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(newStatus)),
		zap.String("recipient", recipient))
	return &jig, nil
}

// AddMaintenance prepends a maintenance record (newest first) and derives
// the status from the check result: OK puts the JIG back in stock, NOK
// sends it to maintenance. No transfer entry is written.
func (s *InventoryService) AddMaintenance(ctx context.Context, storeID string, record entity.MaintenanceRecord) (*entity.Jig, error) {
	if record.CheckResult != entity.CheckResultOK && record.CheckResult != entity.CheckResultNOK {
		return nil, fmt.Errorf("%w: check result must be OK or NOK", ErrValidation)
	}
	if strings.TrimSpace(record.PerformedBy) == "" {
		return nil, fmt.Errorf("%w: performedBy is required", ErrValidation)
	}
	if record.CheckResult == entity.CheckResultNOK {
		if strings.TrimSpace(record.Issue) == "" {
			return nil, fmt.Errorf("%w: issue is required for NOK results", ErrValidation)
		}
		if strings.TrimSpace(record.CorrectiveAction) == "" {
			return nil, fmt.Errorf("%w: corrective action is required for NOK results", ErrValidation)
		}
	}

	jig, ok := s.findByStoreID(storeID)
	if !ok {
		return nil, fmt.Errorf("store id %s: %w", storeID, ErrNotFound)
	}

	if record.Date.IsZero() {
		record.Date = s.clock()
	}

	jig.MaintenanceHistory = append([]entity.MaintenanceRecord{record}, jig.MaintenanceHistory...)
	if record.CheckResult == entity.CheckResultOK {
		jig.Status = entity.StatusInStock
	} else {
		jig.Status = entity.StatusUnderMaintenance
	}

	if err := s.store.Update(ctx, storeID, jig); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("store id %s: %w", storeID, ErrNotFound)
		}
		return nil, fmt.Errorf("log maintenance on %s: %w", jig.Code, err)
	}

	s.logger.Info("Maintenance logged",
		zap.String("code", jig.Code),
		zap.String("result", string(record.CheckResult)),
		zap.String("performed_by", record.PerformedBy))
	return &jig, nil
}

// DeleteJig removes the JIG. An id absent from the cache is idempotent
// success, not an error.
func (s *InventoryService) DeleteJig(ctx context.Context, storeID string) error {
	jig, ok := s.findByStoreID(storeID)
	if !ok {
		s.logger.Debug("Delete of unknown store id ignored", zap.String("store_id", storeID))
		return nil
	}
	if err := s.store.Delete(ctx, storeID); err != nil {
		return fmt.Errorf("delete jig %s: %w", jig.Code, err)
	}
	s.logger.Info("JIG deleted", zap.String("code", jig.Code))
	return nil
}

// ImportJigs replaces the whole collection: every live record is deleted,
// then every incoming record is created with its store id stripped. The
// operation is not transactional; a failure partway through leaves the
// mix of deleted/imported records it got to, and the error says how far
// it came.
func (s *InventoryService) ImportJigs(ctx context.Context, jigs []entity.Jig) error {
	existing := s.Jigs()
	deleted := 0
	for _, jig := range existing {
		if jig.StoreID == "" {
			continue
		}
		if err := s.store.Delete(ctx, jig.StoreID); err != nil {
			return fmt.Errorf("import aborted after deleting %d of %d records: %w",
				deleted, len(existing), err)
		}
		deleted++
	}

	imported := 0
	for _, jig := range jigs {
		jig.StoreID = ""
		if jig.MaintenanceHistory == nil {
			jig.MaintenanceHistory = []entity.MaintenanceRecord{}
		}
		if jig.TransferHistory == nil {
			jig.TransferHistory = []entity.TransferRecord{}
		}
		if _, err := s.store.Create(ctx, jig); err != nil {
			return fmt.Errorf("import aborted after creating %d of %d records (all %d old records deleted): %w",
				imported, len(jigs), deleted, err)
		}
		imported++
	}

	s.logger.Info("Inventory imported",
		zap.Int("deleted", deleted), zap.Int("imported", imported))
	return nil
}
