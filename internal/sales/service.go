package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/tradebook/internal/ar"
	"github.com/odyssey-erp/tradebook/internal/platform/cache"
	"github.com/odyssey-erp/tradebook/internal/sales/conversion"
	"github.com/odyssey-erp/tradebook/internal/sales/pricing"
	"github.com/odyssey-erp/tradebook/internal/shared"
)

// RepositoryPort defines document persistence used by the service.
type RepositoryPort interface {
	GetDocument(ctx context.Context, kind conversion.DocumentKind, id string) (Document, error)
	ListDocumentIDs(ctx context.Context, kind conversion.DocumentKind) ([]string, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional document writes.
type TxRepository interface {
	InsertDocument(ctx context.Context, doc Document) (Document, error)
	UpdateTotals(ctx context.Context, id string, totals pricing.DocumentTotals) error
}

// InvoiceOpener registers receivables for issued invoices. It is called with
// the context of the document transaction and must join it.
type InvoiceOpener interface {
	OpenInvoice(ctx context.Context, in ar.OpenInvoiceInput) (ar.Invoice, error)
}

// Service provides business logic for commercial documents.
type Service struct {
	repo     RepositoryPort
	totals   *cache.JSONCache
	invoices InvoiceOpener
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

// NewService constructs a sales service. totals and invoices may be nil.
func NewService(repo RepositoryPort, totals *cache.JSONCache, invoices InvoiceOpener, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, totals: totals, invoices: invoices, logger: logger, newID: uuid.NewString, now: time.Now}
}

// CreateDocument normalises submitted lines and stores a new document with
// its totals.
func (s *Service) CreateDocument(ctx context.Context, in CreateInput) (Document, error) {
	verr := &shared.ValidationError{}
	if !in.Kind.Valid() {
		verr.Add(-1, "kind", "must be QUOTE, DELIVERY_NOTE or INVOICE")
	}
	if len(in.Lines) == 0 {
		verr.Add(-1, "lines", "at least one line is required")
	}
	lines := make([]DocumentLine, len(in.Lines))
	for i, l := range in.Lines {
		item := pricing.Normalize(l.Values)
		if strings.TrimSpace(l.ProductID) == "" {
			verr.Add(i, "productId", "is required")
		}
		if item.Quantity <= 0 {
			verr.Add(i, "quantity", "must be greater than zero")
		}
		if item.UnitPriceHT < 0 {
			verr.Add(i, "unitPriceHT", "must not be negative")
		}
		line := DocumentLine{
			ID:          s.newID(),
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Description: l.Description,
			Quantity:    item.Quantity,
			UnitPriceHT: item.UnitPriceHT,
			VATRate:     item.VATRate,
		}
		if in.Kind == conversion.KindDeliveryNote {
			delivered := item.Quantity
			line.QuantityOrdered = item.Quantity
			line.QuantityDelivered = &delivered
		} else {
			discount := item.DiscountRate
			line.DiscountRate = &discount
		}
		lines[i] = line
	}
	if err := verr.OrNil(); err != nil {
		return Document{}, err
	}
	doc := Document{ID: s.newID(), Kind: in.Kind, Number: in.Number, Lines: lines}
	return s.store(ctx, doc)
}

// Convert maps a stored quote or delivery note into a new document of the
// target kind, computes its totals and stores it.
func (s *Service) Convert(ctx context.Context, in ConvertInput) (Document, error) {
	src, err := s.repo.GetDocument(ctx, in.SourceKind, in.SourceID)
	if err != nil {
		return Document{}, err
	}
	lines, err := conversion.Convert(src.Source(), in.Target,
		conversion.WithIDGenerator(s.newID),
		conversion.WithDelivered(in.Delivered))
	if err != nil {
		return Document{}, err
	}
	doc := Document{
		ID:         s.newID(),
		Kind:       in.Target,
		Number:     in.Number,
		SourceKind: src.Kind,
		SourceID:   src.ID,
		Lines:      linesFromTarget(in.Target, lines),
	}
	return s.store(ctx, doc)
}

// GetDocument loads a stored document.
func (s *Service) GetDocument(ctx context.Context, kind conversion.DocumentKind, id string) (Document, error) {
	return s.repo.GetDocument(ctx, kind, id)
}

// PreviewConversion converts a submitted document without storing anything.
func (s *Service) PreviewConversion(src conversion.SourceDocument, target conversion.DocumentKind, delivered map[string]float64) (Preview, error) {
	lines, err := conversion.Convert(src, target, conversion.WithIDGenerator(s.newID), conversion.WithDelivered(delivered))
	if err != nil {
		return Preview{}, err
	}
	return Preview{Lines: lines, Totals: pricing.Aggregate(conversion.LineItems(lines))}, nil
}

// Totals returns the document totals through the read-through cache.
func (s *Service) Totals(ctx context.Context, kind conversion.DocumentKind, id string) (pricing.DocumentTotals, error) {
	key, err := s.totals.Key(ctx, string(kind), id)
	if err != nil {
		return pricing.DocumentTotals{}, fmt.Errorf("sales: totals key: %w", err)
	}
	var totals pricing.DocumentTotals
	err = s.totals.FetchJSON(ctx, key, &totals, func(ctx context.Context) (any, error) {
		doc, err := s.repo.GetDocument(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		return pricing.Aggregate(doc.LineItems()), nil
	})
	return totals, err
}

// RecalculateTotals recomputes and stores the totals of one document and
// drops its cached copy.
func (s *Service) RecalculateTotals(ctx context.Context, kind conversion.DocumentKind, id string) (pricing.DocumentTotals, error) {
	doc, err := s.repo.GetDocument(ctx, kind, id)
	if err != nil {
		return pricing.DocumentTotals{}, err
	}
	totals := pricing.Aggregate(doc.LineItems())
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateTotals(ctx, doc.ID, totals)
	})
	if err != nil {
		return pricing.DocumentTotals{}, fmt.Errorf("sales: store totals: %w", err)
	}
	if err := s.totals.Invalidate(ctx, string(kind), id); err != nil {
		s.logger.Warn("sales: invalidate totals cache", slog.String("document_id", id), slog.Any("error", err))
	}
	return totals, nil
}

// RecalculateAll recomputes the totals of every document of kind and returns
// how many were refreshed.
func (s *Service) RecalculateAll(ctx context.Context, kind conversion.DocumentKind) (int, error) {
	ids, err := s.repo.ListDocumentIDs(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("sales: list documents: %w", err)
	}
	for i, id := range ids {
		if _, err := s.RecalculateTotals(ctx, kind, id); err != nil {
			return i, err
		}
	}
	if err := s.totals.Bump(ctx); err != nil {
		s.logger.Warn("sales: bump totals cache", slog.Any("error", err))
	}
	return len(ids), nil
}

func (s *Service) store(ctx context.Context, doc Document) (Document, error) {
	doc.Totals = pricing.Aggregate(doc.LineItems())
	if !doc.Totals.Reconciles() {
		s.logger.Warn("sales: vat breakdown does not reconcile",
			slog.String("document_id", doc.ID),
			slog.Float64("total_vat", doc.Totals.TotalVAT),
			slog.Float64("breakdown_vat", doc.Totals.BreakdownVAT()))
	}
	// The receivable is opened on the transaction context so an invoice is
	// never stored without it.
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stored, err := tx.InsertDocument(ctx, doc)
		if err != nil {
			return fmt.Errorf("sales: store document: %w", err)
		}
		if stored.Kind == conversion.KindInvoice && s.invoices != nil {
			if _, err := s.invoices.OpenInvoice(ctx, ar.OpenInvoiceInput{
				Number:     stored.Number,
				DocumentID: stored.ID,
				TotalTTC:   stored.Totals.TotalTTC,
			}); err != nil {
				return fmt.Errorf("sales: open receivable: %w", err)
			}
		}
		doc = stored
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("sales: document stored",
		slog.String("id", doc.ID),
		slog.String("kind", string(doc.Kind)),
		slog.Float64("total_ttc", doc.Totals.TotalTTC))
	return doc, nil
}
