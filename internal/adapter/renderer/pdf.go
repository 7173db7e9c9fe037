package renderer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// PDFRenderer writes one PDF artifact per order into a shared directory.
type PDFRenderer struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	dirReady bool
}

// NewPDFRenderer constructs a renderer rooted at dir. The directory is created lazily.
func NewPDFRenderer(dir string, logger *slog.Logger) *PDFRenderer {
	return &PDFRenderer{dir: dir, logger: logger}
}

// FileName returns the artifact name used for an order.
func FileName(orderID int64) string {
	return "invoice-" + strconv.FormatInt(orderID, 10) + ".pdf"
}

// Render produces the invoice PDF and returns its path.
func (r *PDFRenderer) Render(ctx context.Context, order model.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := r.ensureDir(); err != nil {
		return "", err
	}

	target := filepath.Join(r.dir, FileName(order.ID))
	tmp := target + ".tmp"

	doc := buildDocument(order)
	if err := doc.OutputFileAndClose(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write pdf: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("publish pdf: %w", err)
	}

	r.logger.Debug("invoice artifact rendered", slog.Int64("order_id", order.ID), slog.String("path", target))
	return target, nil
}

// Remove deletes an artifact. A file that is already gone is not an error.
func (r *PDFRenderer) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}

func (r *PDFRenderer) ensureDir() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dirReady {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create invoice dir: %w", err)
	}
	r.dirReady = true
	return nil
}

func buildDocument(order model.Order) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Invoice #%d", order.ID), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(fmt.Sprintf("Invoice #%d", order.ID)), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, tr("Customer: "+order.Customer.FullName()), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, tr("Email: "+order.Customer.Email), "", 1, "L", false, 0, "")
	if !order.OrderDate.IsZero() {
		pdf.CellFormat(0, 7, "Order date: "+order.OrderDate.UTC().Format(time.DateOnly), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 7, tr("Status: "+string(order.Status)), "", 1, "L", false, 0, "")
	if order.PaymentMethod != "" {
		pdf.CellFormat(0, 7, tr("Payment: "+order.PaymentMethod), "", 1, "L", false, 0, "")
	}
	if order.ShippingMethod != "" {
		pdf.CellFormat(0, 7, tr("Shipping: "+order.ShippingMethod), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 233, 240)
	pdf.CellFormat(95, 8, "Product", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Total", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, item := range order.Items {
		pdf.CellFormat(95, 8, tr(item.ProductName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, strconv.Itoa(item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, item.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, item.Total().StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(150, 10, "Amount due", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 10, order.TotalAmount.StringFixed(2), "1", 1, "R", false, 0, "")

	return pdf
}
