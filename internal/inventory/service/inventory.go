package service

import (
	"context"
	"time"

	"github.com/clinichq/clinic-backend/internal/inventory/events"
	"github.com/clinichq/clinic-backend/internal/inventory/repository"
	"github.com/clinichq/clinic-backend/pkg/actor"
	"github.com/clinichq/clinic-backend/pkg/campus"
	"github.com/clinichq/clinic-backend/pkg/errors"
	"github.com/clinichq/clinic-backend/pkg/httputil"
	"github.com/clinichq/clinic-backend/pkg/logger"
	"github.com/clinichq/clinic-backend/pkg/messaging"
)

// Pagination defaults
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Page is a normalized pagination request.
type Page struct {
	Number  int
	PerPage int
}

// NormalizePage clamps raw pagination parameters to sane bounds.
func NormalizePage(number, perPage int) Page {
	if number < 1 {
		number = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Page{Number: number, PerPage: perPage}
}

func (p Page) slice(total int) (int, int) {
	start := (p.Number - 1) * p.PerPage
	if start > total {
		start = total
	}
	end := start + p.PerPage
	if end > total {
		end = total
	}
	return start, end
}

// BatchView is a batch with its derived ledger flags. The flags are computed
// on read so they are always consistent with the stored quantity and dates.
type BatchView struct {
	repository.BatchWithMedicine
	LowStock     bool `json:"low_stock"`
	ExpiringSoon bool `json:"expiring_soon"`
	Expired      bool `json:"expired"`
}

// MedicineGroup aggregates one medicine's batches at the listed campuses.
// Aggregates are computed over the filtered set, never the whole catalog.
type MedicineGroup struct {
	MedicineID      string       `json:"medicine_id"`
	MedicineName    string       `json:"medicine_name"`
	MedicineType    string       `json:"medicine_type"`
	MedicineUnit    string       `json:"medicine_unit"`
	TotalQuantity   int          `json:"total_quantity"`
	BatchCount      int          `json:"batch_count"`
	LowStockCount   int          `json:"low_stock_count"`
	ExpiringCount   int          `json:"expiring_count"`
	ExpiredCount    int          `json:"expired_count"`
	EarliestExpiry  time.Time    `json:"earliest_expiry"`
	LatestDateAdded time.Time    `json:"latest_date_added"`
	Batches         []*BatchView `json:"batches"`
}

// InventoryService handles the medicine catalog and the batch ledger.
type InventoryService struct {
	medicines *repository.MedicineRepository
	batches   *repository.BatchRepository
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	medicines *repository.MedicineRepository,
	batches *repository.BatchRepository,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		medicines: medicines,
		batches:   batches,
		publisher: publisher,
		logger:    log.WithComponent("inventory-service"),
	}
}

// CreateMedicineRequest is the payload for adding a catalog entry.
type CreateMedicineRequest struct {
	Name           string  `json:"name" validate:"required,max=255"`
	Type           string  `json:"type" validate:"required,max=100"`
	Unit           string  `json:"unit" validate:"required,max=50"`
	DosageStrength *string `json:"dosage_strength,omitempty"`
	Form           *string `json:"form,omitempty"`
	Description    *string `json:"description,omitempty"`
}

// CreateMedicine adds a new entry to the shared medicine catalog.
func (s *InventoryService) CreateMedicine(ctx context.Context, act *actor.Actor, req *CreateMedicineRequest) (*repository.Medicine, error) {
	if !act.CanManageInventory() {
		return nil, errors.Forbidden("you are not allowed to manage inventory")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	m := &repository.Medicine{
		Name:           req.Name,
		Type:           req.Type,
		Unit:           req.Unit,
		DosageStrength: req.DosageStrength,
		Form:           req.Form,
		Description:    req.Description,
	}
	if err := s.medicines.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info().Str("medicine_id", m.ID).Str("name", m.Name).Msg("medicine created")
	return m, nil
}

// ListMedicines returns the full catalog.
func (s *InventoryService) ListMedicines(ctx context.Context, act *actor.Actor) ([]*repository.Medicine, error) {
	if !act.CanViewInventory() {
		return nil, errors.Forbidden("you are not allowed to view inventory")
	}
	return s.medicines.List(ctx)
}

// GetMedicine returns one catalog entry.
func (s *InventoryService) GetMedicine(ctx context.Context, act *actor.Actor, id string) (*repository.Medicine, error) {
	if !act.CanViewInventory() {
		return nil, errors.Forbidden("you are not allowed to view inventory")
	}
	return s.medicines.GetByID(ctx, id)
}

// UpdateMedicineRequest is the payload for correcting a catalog entry.
type UpdateMedicineRequest struct {
	Name           string  `json:"name" validate:"required,max=255"`
	Type           string  `json:"type" validate:"required,max=100"`
	Unit           string  `json:"unit" validate:"required,max=50"`
	DosageStrength *string `json:"dosage_strength,omitempty"`
	Form           *string `json:"form,omitempty"`
	Description    *string `json:"description,omitempty"`
}

// UpdateMedicine corrects a catalog entry.
func (s *InventoryService) UpdateMedicine(ctx context.Context, act *actor.Actor, id string, req *UpdateMedicineRequest) (*repository.Medicine, error) {
	if !act.CanManageInventory() {
		return nil, errors.Forbidden("you are not allowed to manage inventory")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	m.Name = req.Name
	m.Type = req.Type
	m.Unit = req.Unit
	m.DosageStrength = req.DosageStrength
	m.Form = req.Form
	m.Description = req.Description

	if err := s.medicines.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMedicine removes a catalog entry. Entries with existing batches are
// protected by the foreign key and surface as a bad request.
func (s *InventoryService) DeleteMedicine(ctx context.Context, act *actor.Actor, id string) error {
	if !act.CanManageInventory() {
		return errors.Forbidden("you are not allowed to manage inventory")
	}
	return s.medicines.Delete(ctx, id)
}

// AddBatchRequest is the payload for recording a new stock batch. An omitted
// threshold gets a default; an explicit zero means the batch never alerts.
type AddBatchRequest struct {
	MedicineID        string    `json:"medicine_id" validate:"required,uuid"`
	Campus            string    `json:"campus" validate:"required"`
	Quantity          int       `json:"quantity" validate:"required,gte=1"`
	ExpiryDate        time.Time `json:"expiry_date" validate:"required"`
	BatchNumber       string    `json:"batch_number" validate:"required,max=100"`
	Distributor       string    `json:"distributor" validate:"required,max=255"`
	LowStockThreshold *int      `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

// AddBatch records a new shipment as its own ledger row. Non-admins may only
// add stock to their own campus.
func (s *InventoryService) AddBatch(ctx context.Context, act *actor.Actor, req *AddBatchRequest) (*repository.InventoryBatch, error) {
	if !act.CanManageInventory() {
		return nil, errors.Forbidden("you are not allowed to manage inventory")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}
	if !campus.Valid(req.Campus) {
		return nil, errors.Validation(map[string]string{"campus": "unknown campus"})
	}
	if !act.IsAdmin() && req.Campus != act.Campus {
		return nil, errors.Forbidden("you may only add stock to your own campus")
	}

	if _, err := s.medicines.GetByID(ctx, req.MedicineID); err != nil {
		return nil, err
	}

	threshold := 10
	if req.LowStockThreshold != nil {
		threshold = *req.LowStockThreshold
	}

	b := &repository.InventoryBatch{
		MedicineID:        req.MedicineID,
		Campus:            req.Campus,
		Quantity:          req.Quantity,
		ExpiryDate:        req.ExpiryDate,
		BatchNumber:       req.BatchNumber,
		Distributor:       req.Distributor,
		LowStockThreshold: threshold,
	}

	if err := s.batches.Create(ctx, b); err != nil {
		return nil, err
	}

	s.publisher.PublishBatchCreated(ctx, messaging.BatchCreatedEvent{
		BatchID:    b.ID,
		MedicineID: b.MedicineID,
		Campus:     b.Campus,
		Quantity:   b.Quantity,
	})

	s.logger.Info().
		Str("batch_id", b.ID).
		Str("campus", b.Campus).
		Int("quantity", b.Quantity).
		Msg("batch added")
	return b, nil
}

// AdjustBatchRequest corrects an existing batch.
type AdjustBatchRequest struct {
	Quantity          int       `json:"quantity" validate:"gte=0"`
	ExpiryDate        time.Time `json:"expiry_date" validate:"required"`
	BatchNumber       string    `json:"batch_number" validate:"required,max=100"`
	Distributor       string    `json:"distributor" validate:"required,max=255"`
	LowStockThreshold int       `json:"low_stock_threshold" validate:"gte=0"`
}

// AdjustBatch corrects a batch's quantity and metadata. Quantity zero is a
// legal state; the row is kept so the batch stays auditable.
func (s *InventoryService) AdjustBatch(ctx context.Context, act *actor.Actor, id string, req *AdjustBatchRequest) (*repository.InventoryBatch, error) {
	if !act.CanManageInventory() {
		return nil, errors.Forbidden("you are not allowed to manage inventory")
	}
	if err := httputil.Validate(req); err != nil {
		return nil, err
	}

	b, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !act.IsAdmin() && b.Campus != act.Campus {
		return nil, errors.Forbidden("you may only adjust stock at your own campus")
	}

	b.Quantity = req.Quantity
	b.ExpiryDate = req.ExpiryDate
	b.BatchNumber = req.BatchNumber
	b.Distributor = req.Distributor
	b.LowStockThreshold = req.LowStockThreshold

	if err := s.batches.Update(ctx, b); err != nil {
		return nil, err
	}

	s.publisher.PublishStockAdjusted(ctx, messaging.StockAdjustedEvent{
		BatchID:     b.ID,
		MedicineID:  b.MedicineID,
		Campus:      b.Campus,
		NewQuantity: b.Quantity,
		PerformedBy: act.ID,
	})
	return b, nil
}

// DeleteBatch removes a batch row.
func (s *InventoryService) DeleteBatch(ctx context.Context, act *actor.Actor, id string) error {
	if !act.CanManageInventory() {
		return errors.Forbidden("you are not allowed to manage inventory")
	}

	b, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !act.IsAdmin() && b.Campus != act.Campus {
		return errors.Forbidden("you may only delete stock at your own campus")
	}

	return s.batches.Delete(ctx, id)
}

// ListBatchesRequest selects and pages the flat batch listing.
type ListBatchesRequest struct {
	Campus  string
	Type    string
	Search  string
	Page    int
	PerPage int
}

// ListBatches returns a page of batches with derived flags. Non-admin actors
// are pinned to their own campus regardless of the requested filter.
func (s *InventoryService) ListBatches(ctx context.Context, act *actor.Actor, req ListBatchesRequest) ([]*BatchView, int, error) {
	if !act.CanViewInventory() {
		return nil, 0, errors.Forbidden("you are not allowed to view inventory")
	}

	views, err := s.fetchViews(ctx, act, req.Campus, req.Type, req.Search)
	if err != nil {
		return nil, 0, err
	}

	total := len(views)
	start, end := NormalizePage(req.Page, req.PerPage).slice(total)
	return views[start:end], total, nil
}

// ListGrouped returns batches grouped per medicine. Groups are formed over
// the complete filtered set first, then the page is cut over groups, so a
// medicine's batches never straddle two pages.
func (s *InventoryService) ListGrouped(ctx context.Context, act *actor.Actor, req ListBatchesRequest) ([]*MedicineGroup, int, error) {
	if !act.CanViewInventory() {
		return nil, 0, errors.Forbidden("you are not allowed to view inventory")
	}

	views, err := s.fetchViews(ctx, act, req.Campus, req.Type, req.Search)
	if err != nil {
		return nil, 0, err
	}

	groups := groupByMedicine(views)
	total := len(groups)
	start, end := NormalizePage(req.Page, req.PerPage).slice(total)
	return groups[start:end], total, nil
}

func (s *InventoryService) fetchViews(ctx context.Context, act *actor.Actor, campusFilter, typeFilter, search string) ([]*BatchView, error) {
	effective := act.CampusScope()
	if effective == "" {
		effective = campusFilter
	}

	batches, err := s.batches.ListFiltered(ctx, repository.BatchFilter{
		Campus: effective,
		Type:   typeFilter,
		Search: search,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	views := make([]*BatchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, &BatchView{
			BatchWithMedicine: *b,
			LowStock:          b.IsLowStock(),
			ExpiringSoon:      b.IsNearingExpiry(now, repository.DefaultExpiryWindowDays),
			Expired:           b.IsExpired(now),
		})
	}
	return views, nil
}

func groupByMedicine(views []*BatchView) []*MedicineGroup {
	index := make(map[string]*MedicineGroup)
	var order []string
	for _, v := range views {
		g, ok := index[v.MedicineID]
		if !ok {
			g = &MedicineGroup{
				MedicineID:   v.MedicineID,
				MedicineName: v.MedicineName,
				MedicineType: v.MedicineType,
				MedicineUnit: v.MedicineUnit,
			}
			index[v.MedicineID] = g
			order = append(order, v.MedicineID)
		}
		g.TotalQuantity += v.Quantity
		g.BatchCount++
		if v.LowStock {
			g.LowStockCount++
		}
		if v.ExpiringSoon {
			g.ExpiringCount++
		}
		if v.Expired {
			g.ExpiredCount++
		}
		if g.EarliestExpiry.IsZero() || v.ExpiryDate.Before(g.EarliestExpiry) {
			g.EarliestExpiry = v.ExpiryDate
		}
		if v.DateAdded.After(g.LatestDateAdded) {
			g.LatestDateAdded = v.DateAdded
		}
		g.Batches = append(g.Batches, v)
	}

	groups := make([]*MedicineGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, index[id])
	}
	return groups
}

// Summary returns the actor's ledger counts. Admins may widen or narrow the
// scope with an explicit campus.
func (s *InventoryService) Summary(ctx context.Context, act *actor.Actor, campusFilter string) (*repository.SummaryStats, error) {
	if !act.CanViewInventory() {
		return nil, errors.Forbidden("you are not allowed to view inventory")
	}

	effective := act.CampusScope()
	if effective == "" {
		effective = campusFilter
	}
	if effective != "" && !campus.Valid(effective) {
		return nil, errors.Validation(map[string]string{"campus": "unknown campus"})
	}

	return s.batches.Summary(ctx, effective, repository.DefaultExpiryWindowDays)
}
