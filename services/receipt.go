package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/HSouheill/partner_marketplace/models"
	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Receipt renders a single-page PDF receipt for a settled booking visible to
// actor.
func (s *BookingService) Receipt(ctx context.Context, actor Actor, bookingID primitive.ObjectID) ([]byte, *models.Booking, error) {
	booking, err := s.Get(ctx, actor, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.PaymentStatus == models.PaymentStatusUnpaid {
		return nil, nil, validationError("Booking has not been paid")
	}

	var payer, partnerName string
	if u, err := s.users.FindByID(ctx, booking.UserID); err == nil {
		payer = u.Name
	}
	if p, err := s.partners.FindByID(ctx, booking.PartnerID); err == nil {
		if u, err := s.users.FindByID(ctx, p.UserID); err == nil {
			partnerName = u.Name
		}
	}

	out, err := renderReceipt(booking, payer, partnerName)
	if err != nil {
		return nil, nil, fmt.Errorf("render receipt: %w", err)
	}
	return out, booking, nil
}

func renderReceipt(b *models.Booking, payer, partnerName string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, "BOOKING RECEIPT")
	pdf.Ln(16)

	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(6)

	receiptSection(pdf, "BOOKING")
	receiptLine(pdf, "Booking ID", b.ID.Hex())
	receiptLine(pdf, "Date", b.Date.Format(models.BookingDateLayout))
	receiptLine(pdf, "Time", b.StartTime+" - "+b.EndTime)
	receiptLine(pdf, "Status", b.Status)
	if payer != "" {
		receiptLine(pdf, "Booked by", payer)
	}
	if partnerName != "" {
		receiptLine(pdf, "Partner", partnerName)
	}
	pdf.Ln(4)

	receiptSection(pdf, "PAYMENT")
	receiptLine(pdf, "Amount", fmt.Sprintf("%.2f", b.TotalAmount))
	receiptLine(pdf, "Payment status", b.PaymentStatus)
	if b.RazorpayOrderID != "" {
		receiptLine(pdf, "Order ID", b.RazorpayOrderID)
	}
	if b.RazorpayPaymentID != "" {
		receiptLine(pdf, "Payment ID", b.RazorpayPaymentID)
	}
	if b.PaidAt != nil {
		receiptLine(pdf, "Paid at", b.PaidAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	if b.RazorpayRefundID != "" {
		receiptLine(pdf, "Refund ID", b.RazorpayRefundID)
	}
	pdf.Ln(6)

	qrPNG, err := bookingQR(b.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("booking qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("booking-qr", opts, bytes.NewReader(qrPNG))
	y := pdf.GetY()
	pdf.ImageOptions("booking-qr", 15, y, 40, 40, false, opts, 0, "")
	pdf.SetXY(60, y+16)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.Cell(0, 6, "Scan to look up this booking.")

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(15, 285, 195, 285)
	pdf.SetY(288)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, "This receipt was generated automatically.", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// bookingQR encodes the booking id as a 200x200 PNG QR code.
func bookingQR(bookingID string) ([]byte, error) {
	code, err := qr.Encode(bookingID, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	code, err = barcode.Scale(code, 200, 200)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func receiptSection(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 9, title, "", 1, "L", true, 0, "")
	pdf.Ln(2)
}

func receiptLine(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(45, 7, label+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
}
