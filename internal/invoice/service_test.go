package invoice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu       sync.Mutex
	invoices map[int64]Invoice
	items    map[int64]struct{}
	lines    map[string]LineItem
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices: make(map[int64]Invoice),
		items:    make(map[int64]struct{}),
		lines:    make(map[string]LineItem),
	}
}

func lineKey(invoiceID, itemID int64) string {
	return fmt.Sprintf("%d:%d", invoiceID, itemID)
}

func (r *memoryRepo) addInvoice(customerID int64) int64 {
	r.nextID++
	r.invoices[r.nextID] = Invoice{ID: r.nextID, CustomerID: customerID, CreatedAt: time.Now()}
	return r.nextID
}

func (r *memoryRepo) addItem(id int64) {
	r.items[id] = struct{}{}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	r.nextID++
	inv.ID = r.nextID
	inv.CreatedAt = time.Now()
	r.invoices[inv.ID] = inv
	return inv, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	result := []Invoice{}
	for _, inv := range r.invoices {
		if filter.CustomerID == 0 || inv.CustomerID == filter.CustomerID {
			result = append(result, inv)
		}
	}
	return result, len(result), nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, patch Patch) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	if patch.CustomerID != nil {
		inv.CustomerID = *patch.CustomerID
	}
	if patch.ServiceTicketID != nil {
		inv.ServiceTicketID = *patch.ServiceTicketID
	}
	if patch.Total != nil {
		inv.Total = *patch.Total
	}
	if patch.Submitted != nil {
		inv.Submitted = *patch.Submitted
	}
	r.invoices[id] = inv
	return inv, nil
}

func (r *memoryRepo) Lines(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	result := []LineItem{}
	for _, line := range r.lines {
		if line.InvoiceID == invoiceID {
			result = append(result, line)
		}
	}
	return result, nil
}

func (tx *memoryTx) InvoiceExists(ctx context.Context, id int64) (bool, error) {
	_, ok := tx.repo.invoices[id]
	return ok, nil
}

func (tx *memoryTx) ItemExists(ctx context.Context, id int64) (bool, error) {
	_, ok := tx.repo.items[id]
	return ok, nil
}

func (tx *memoryTx) GetLineForUpdate(ctx context.Context, invoiceID, itemID int64) (LineItem, error) {
	line, ok := tx.repo.lines[lineKey(invoiceID, itemID)]
	if !ok {
		return LineItem{}, ErrLineNotFound
	}
	return line, nil
}

func (tx *memoryTx) AddLineQuantity(ctx context.Context, invoiceID, itemID int64, delta int32) (int32, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	key := lineKey(invoiceID, itemID)
	line, ok := tx.repo.lines[key]
	if !ok {
		line = LineItem{InvoiceID: invoiceID, InventoryItemID: itemID}
	}
	line.Quantity += delta
	tx.repo.lines[key] = line
	return line.Quantity, nil
}

func (tx *memoryTx) MoveLine(ctx context.Context, invoiceID, itemID, newItemID int64) error {
	key := lineKey(invoiceID, itemID)
	line := tx.repo.lines[key]
	delete(tx.repo.lines, key)
	line.InventoryItemID = newItemID
	tx.repo.lines[lineKey(invoiceID, newItemID)] = line
	return nil
}

func (tx *memoryTx) DeleteLine(ctx context.Context, invoiceID, itemID int64) error {
	delete(tx.repo.lines, lineKey(invoiceID, itemID))
	return nil
}

func (tx *memoryTx) DeleteInvoiceLines(ctx context.Context, invoiceID int64) error {
	for key, line := range tx.repo.lines {
		if line.InvoiceID == invoiceID {
			delete(tx.repo.lines, key)
		}
	}
	return nil
}

func (tx *memoryTx) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	delete(tx.repo.invoices, invoiceID)
	return nil
}

func TestAddItemMergesOnConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv := repo.addInvoice(1)
	repo.addItem(5)

	qty, err := svc.AddItem(ctx, 1, inv, 5, 2)
	require.NoError(t, err)
	require.Equal(t, int32(2), qty)

	qty, err = svc.AddItem(ctx, 1, inv, 5, 2)
	require.NoError(t, err)
	require.Equal(t, int32(4), qty)

	lines, err := svc.Lines(ctx, inv)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, int32(4), lines[0].Quantity)
}

func TestAddItemConcurrentFirstInsert(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv := repo.addInvoice(1)
	repo.addItem(5)

	// Neither caller sees an existing line for the pair; both deltas
	// must still land.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, 1, inv, 5, 2)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	lines, err := svc.Lines(ctx, inv)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, int32(4), lines[0].Quantity)
}

func TestAddItemValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv := repo.addInvoice(1)
	repo.addItem(5)

	_, err := svc.AddItem(ctx, 1, inv, 5, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddItem(ctx, 1, inv, 5, -3)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddItemMissingEntities(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv := repo.addInvoice(1)
	repo.addItem(5)

	// Missing inventory item reports the item, not the invoice.
	_, err := svc.AddItem(ctx, 1, inv, 3, 1)
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = svc.AddItem(ctx, 1, 999, 5, 1)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestAddRemoveAddLeavesNoResidual(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv := repo.addInvoice(1)
	repo.addItem(5)

	_, err := svc.AddItem(ctx, 1, inv, 5, 7)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveItem(ctx, 1, inv, 5))

	qty, err := svc.AddItem(ctx, 1, inv, 5, 2)
	require.NoError(t, err)
	require.Equal(t, int32(2), qty)
}

func TestRemoveItemMissing(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	inv := repo.addInvoice(1)
	err := svc.RemoveItem(context.Background(), 1, inv, 5)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestReplaceItemPreservesQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv := repo.addInvoice(1)
	repo.addItem(5)
	repo.addItem(6)

	_, err := svc.AddItem(ctx, 1, inv, 5, 3)
	require.NoError(t, err)

	require.NoError(t, svc.ReplaceItem(ctx, 1, inv, 5, 6))

	lines, err := svc.Lines(ctx, inv)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, int64(6), lines[0].InventoryItemID)
	require.Equal(t, int32(3), lines[0].Quantity)
}

func TestReplaceItemFailures(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv := repo.addInvoice(1)
	repo.addItem(5)
	repo.addItem(6)

	// No line yet for the source pair.
	err := svc.ReplaceItem(ctx, 1, inv, 5, 6)
	require.ErrorIs(t, err, ErrLineNotFound)

	_, err = svc.AddItem(ctx, 1, inv, 5, 1)
	require.NoError(t, err)

	// Destination item does not exist in the catalog.
	err = svc.ReplaceItem(ctx, 1, inv, 5, 99)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestReplaceItemRejectsDuplicateDestination(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv := repo.addInvoice(1)
	repo.addItem(5)
	repo.addItem(6)

	_, err := svc.AddItem(ctx, 1, inv, 5, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, 1, inv, 6, 2)
	require.NoError(t, err)

	err = svc.ReplaceItem(ctx, 1, inv, 5, 6)
	require.ErrorIs(t, err, ErrDuplicateLine)

	// Both lines untouched.
	lines, err := svc.Lines(ctx, inv)
	require.NoError(t, err)
	require.Len(t, lines, 2)
}

func TestDeleteCascadesLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	inv := repo.addInvoice(1)
	repo.addItem(5)
	repo.addItem(6)

	_, err := svc.AddItem(ctx, 1, inv, 5, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, 1, inv, 6, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 1, inv))

	_, err = svc.Get(ctx, inv)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
	require.Empty(t, repo.lines)
}

func TestDeleteMissingInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	err := svc.Delete(context.Background(), 1, 42)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}
