package receipt

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Data - всё, что попадает в квитанцию. Время уже переведено в бизнес-таймзону.
type Data struct {
	PaymentID     string
	BookingID     string
	CustomerName  string
	CustomerPhone string
	Date          string
	StartTime     string
	EndTime       string
	RoomName      string
	PricePerHour  int64
	TotalAmount   int64
	PaymentCode   string
	PaymentStatus string
	PaidAt        string
}

type Renderer interface {
	Render(data Data) ([]byte, error)
}

// PDFRenderer рисует одностраничную квитанцию с QR-кодом кода оплаты.
type PDFRenderer struct {
	Title string
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{Title: "Music Studio Rental Receipt"}
}

func (r *PDFRenderer) Render(d Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, r.Title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(6)

	yStart := pdf.GetY()

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Receipt ID: %s", d.PaymentID),
		fmt.Sprintf("Booking ID: %s", d.BookingID),
		fmt.Sprintf("Name: %s", d.CustomerName),
		fmt.Sprintf("Phone Number: %s", d.CustomerPhone),
		fmt.Sprintf("Date: %s", d.Date),
		fmt.Sprintf("Start Time: %s", d.StartTime),
		fmt.Sprintf("End Time: %s", d.EndTime),
		"",
		fmt.Sprintf("Room Name: %s", d.RoomName),
		fmt.Sprintf("Price per Hour: %s", FormatRupiah(d.PricePerHour)),
		"",
		fmt.Sprintf("Total Amount: %s", FormatRupiah(d.TotalAmount)),
		fmt.Sprintf("Payment Code: %s", d.PaymentCode),
		fmt.Sprintf("Payment Status: %s", d.PaymentStatus),
		fmt.Sprintf("Payment Date: %s", orDash(d.PaidAt)),
	}
	for _, l := range lines {
		pdf.CellFormat(120, 7, l, "", 1, "L", false, 0, "")
	}

	if d.PaymentCode != "" {
		png, err := qrcode.Encode(d.PaymentCode, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode qr: %w", err)
		}
		name := "qr-" + d.PaymentID
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		pdf.ImageOptions(name, 145, yStart, 45, 0, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 11)
	pdf.CellFormat(0, 8, "Thank you for booking with us!", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah: 200000 -> "Rp 200.000".
func FormatRupiah(amount int64) string {
	return idPrinter.Sprintf("Rp %d", amount)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
