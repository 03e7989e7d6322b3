package report

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// qrPixels is the rendered QR bitmap size; qrMillimetres its printed size.
const (
	qrPixels      = 300
	qrMillimetres = 38.0
)

// PDFGenerator renders invoices as A4 PDFs.
type PDFGenerator struct {
	pageWidth    float64
	pageHeight   float64
	margin       float64
	contentWidth float64
}

func NewPDFGenerator() *PDFGenerator {
	margin := 15.0
	pageWidth := 210.0
	return &PDFGenerator{
		pageWidth:    pageWidth,
		pageHeight:   297.0,
		margin:       margin,
		contentWidth: pageWidth - (2 * margin),
	}
}

// Generate renders data as a PDF and writes it to w.
func (g *PDFGenerator) Generate(ctx context.Context, data *InvoiceData, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	qrPNG, err := QRCodePNG(data.FeedbackURL, qrPixels)
	if err != nil {
		return 0, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+data.InvoiceNumber, true)
	pdf.SetAuthor(data.BusinessName, true)
	pdf.SetCreator("Rateflow", true)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		g.addFooter(pdf, data)
	})

	pdf.AddPage()
	g.addHeader(pdf, data)
	g.addParties(pdf, data)
	g.addLineItems(pdf, data)
	g.addFeedbackBlock(pdf, data, qrPNG)

	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("pdf generation error: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("pdf output error: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// =============================================================================
// Sections
// =============================================================================

func (g *PDFGenerator) addHeader(pdf *fpdf.Fpdf, data *InvoiceData) {
	r, gr, b := HexToRGB(BrandColors.Primary)
	pdf.SetFillColor(r, gr, b)
	pdf.Rect(0, 0, g.pageWidth, 40, "F")

	textX := g.margin
	if len(data.LogoPNG) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(data.LogoPNG))
		pdf.ImageOptions("logo", g.margin, 8, 24, 24, false, opts, 0, "")
		textX += 30
	}

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetXY(textX, 12)
	pdf.Cell(0, 10, TruncateText(data.BusinessName, 40))

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetXY(textX, 24)
	pdf.Cell(0, 6, "Invoice "+data.InvoiceNumber+"  |  "+FormatDate(data.IssuedAt))

	r, gr, b = HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)
	pdf.SetY(50)
}

func (g *PDFGenerator) addParties(pdf *fpdf.Fpdf, data *InvoiceData) {
	half := g.contentWidth / 2
	top := pdf.GetY()

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetXY(g.margin, top)
	pdf.Cell(half, 6, "FROM")
	pdf.SetXY(g.margin+half, top)
	pdf.Cell(half, 6, "BILL TO")

	pdf.SetFont("Helvetica", "", 10)
	left := []string{data.BusinessName, data.BusinessEmail}
	if data.TaxID != "" {
		left = append(left, "Tax ID: "+data.TaxID)
	}
	right := []string{data.Customer.Name, data.Customer.Email, data.Customer.Phone}

	for i := 0; i < len(left) || i < len(right); i++ {
		y := top + 7 + float64(i)*6
		if i < len(left) && left[i] != "" {
			pdf.SetXY(g.margin, y)
			pdf.Cell(half, 6, left[i])
		}
		if i < len(right) && right[i] != "" {
			pdf.SetXY(g.margin+half, y)
			pdf.Cell(half, 6, right[i])
		}
	}
	pdf.SetY(top + 35)
}

func (g *PDFGenerator) addLineItems(pdf *fpdf.Fpdf, data *InvoiceData) {
	descW := g.contentWidth - 75
	r, gr, b := HexToRGB(BrandColors.Background)
	pdf.SetFillColor(r, gr, b)
	r, gr, b = HexToRGB(BrandColors.Border)
	pdf.SetDrawColor(r, gr, b)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(descW, 8, "Description", "B", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "B", 0, "R", true, 0, "")
	pdf.CellFormat(27, 8, "Unit", "B", 0, "R", true, 0, "")
	pdf.CellFormat(28, 8, "Total", "B", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range data.LineItems {
		pdf.CellFormat(descW, 7, TruncateText(item.Description, 60), "B", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", item.Quantity), "B", 0, "R", false, 0, "")
		pdf.CellFormat(27, 7, FormatMoney(item.UnitCents, data.Currency), "B", 0, "R", false, 0, "")
		pdf.CellFormat(28, 7, FormatMoney(item.TotalCents(), data.Currency), "B", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(descW+47, 9, "Amount due", "", 0, "R", false, 0, "")
	pdf.CellFormat(28, 9, FormatMoney(data.AmountCents, data.Currency), "", 1, "R", false, 0, "")
	pdf.Ln(8)
}

func (g *PDFGenerator) addFeedbackBlock(pdf *fpdf.Fpdf, data *InvoiceData, qrPNG []byte) {
	if pdf.GetY() > g.pageHeight-70 {
		pdf.AddPage()
	}
	top := pdf.GetY()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("feedback-qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("feedback-qr", g.margin, top, qrMillimetres, qrMillimetres, false, opts, 0, data.FeedbackURL)

	textX := g.margin + qrMillimetres + 8
	pdf.SetXY(textX, top+2)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "How did we do?")

	pdf.SetXY(textX, top+11)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(g.contentWidth-qrMillimetres-8, 5,
		"Scan the code or open the link below to rate your experience. It takes less than a minute.", "", "L", false)

	pdf.SetX(textX)
	r, gr, b := HexToRGB(BrandColors.Primary)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "U", 9)
	pdf.CellFormat(0, 6, TruncateText(data.FeedbackURL, 80), "", 1, "L", false, 0, data.FeedbackURL)

	if data.Coupon != nil {
		pdf.SetX(textX)
		r, gr, b = HexToRGB(BrandColors.Accent)
		pdf.SetTextColor(r, gr, b)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 8, fmt.Sprintf("Coupon %s  valid until %s", data.Coupon.Code, FormatDate(data.Coupon.ExpiryDate)))
	}

	r, gr, b = HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)
	pdf.SetY(top + qrMillimetres + 6)
}

func (g *PDFGenerator) addFooter(pdf *fpdf.Fpdf, data *InvoiceData) {
	pdf.SetY(-15)

	r, gr, b := HexToRGB(BrandColors.Border)
	pdf.SetDrawColor(r, gr, b)
	pdf.Line(g.margin, pdf.GetY()-3, g.pageWidth-g.margin, pdf.GetY()-3)

	r, gr, b = HexToRGB(BrandColors.TextMuted)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "", 8)
	pdf.Cell(0, 10, data.BusinessName+"  |  Invoice "+data.InvoiceNumber)

	pdf.SetX(-g.margin - 30)
	pdf.CellFormat(30, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
}

var _ Generator = (*PDFGenerator)(nil)
