package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/erazemk/evidenca/internal/locker"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
)

// DefaultBarcodeAttempts bounds the search for a free sequence number.
const DefaultBarcodeAttempts = 1000

// BarcodeAllocator mints instance barcodes of the form
// yyyyMMdd-ITEMCODE-000001. Allocation for one date and item code is
// serialized through Locker; the UNIQUE index on item_instances.barcode is
// the final guard.
type BarcodeAllocator struct {
	Locker      locker.Locker
	MaxAttempts int
	Now         func() time.Time
}

// NewBarcodeAllocator returns an allocator using l, or an in-process locker
// when l is nil.
func NewBarcodeAllocator(l locker.Locker) *BarcodeAllocator {
	if l == nil {
		l = locker.NewLocal()
	}
	return &BarcodeAllocator{
		Locker:      l,
		MaxAttempts: DefaultBarcodeAttempts,
		Now:         time.Now,
	}
}

// CleanItemCode keeps the letters and digits of an item code, upper-cased.
func CleanItemCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Allocate returns one unused barcode for the item code.
func (a *BarcodeAllocator) Allocate(ctx context.Context, q Querier, itemCode string) (string, error) {
	codes, err := a.AllocateBatch(ctx, q, itemCode, 1)
	if err != nil {
		return "", err
	}
	return codes[0], nil
}

// AllocateBatch returns n distinct unused barcodes for the item code. q must
// be the transaction that will insert the instances, so that the barcodes
// are taken before any other writer can look.
func (a *BarcodeAllocator) AllocateBatch(ctx context.Context, q Querier, itemCode string, n int) ([]string, error) {
	code := CleanItemCode(itemCode)
	if code == "" {
		return nil, fmt.Errorf("%w: item code %q has no letters or digits", model.ErrValidation, itemCode)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: barcode count must be positive", model.ErrValidation)
	}

	prefix := a.Now().Format("20060102") + "-" + code + "-"

	unlock, err := a.Locker.Lock(ctx, "barcode:"+prefix)
	if err != nil {
		return nil, fmt.Errorf("locking barcode sequence: %w", err)
	}
	defer unlock()

	var count int
	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_instances WHERE substr(barcode, 1, ?) = ?`,
		len(prefix), prefix,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("counting barcodes: %w", err)
	}

	// Sequence numbers only move forward, so a batch never hands out the
	// same barcode twice.
	seq := count + 1
	codes := make([]string, 0, n)
	for len(codes) < n {
		barcode, next, err := a.nextFree(ctx, q, prefix, seq)
		if err != nil {
			return nil, err
		}
		codes = append(codes, barcode)
		seq = next
	}

	metrics.BarcodesAllocated.Add(float64(n))
	return codes, nil
}

// nextFree probes sequence numbers from seq on and returns the first free
// barcode and the sequence number after it.
func (a *BarcodeAllocator) nextFree(ctx context.Context, q Querier, prefix string, seq int) (string, int, error) {
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultBarcodeAttempts
	}

	for range attempts {
		barcode := fmt.Sprintf("%s%06d", prefix, seq)
		seq++

		taken, err := barcodeExists(ctx, q, barcode)
		if err != nil {
			return "", seq, err
		}
		if !taken {
			return barcode, seq, nil
		}
		metrics.BarcodeCollisions.Inc()
	}

	return "", seq, fmt.Errorf("%w: no free barcode for %s after %d attempts",
		model.ErrAllocationExhausted, strings.TrimSuffix(prefix, "-"), attempts)
}

func barcodeExists(ctx context.Context, q Querier, barcode string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_instances WHERE barcode = ?`, barcode,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking barcode: %w", err)
	}
	return count > 0, nil
}
