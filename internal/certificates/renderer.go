package certificates

import (
	"bytes"
	"fmt"
	"image/png"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// DefaultOrganizerName labels the signature line when the workshop organizer has no display name.
const DefaultOrganizerName = "Workshop Organizer"

const (
	localizedTitle = "شهادة إتمام"
	utf8Family     = "certfont"
	qrSize         = 80.0
)

var frameColor = [3]int{51, 102, 204}

// CertificateData is everything printed on one certificate.
type CertificateData struct {
	StudentName      string
	WorkshopTitle    string
	CompletionDate   string // already formatted for display
	VerificationCode string
	OrganizerName    string // optional
}

// RendererConfig configures the certificate renderer.
type RendererConfig struct {
	BaseURL         string // public deployment URL the QR code points into
	FontRegularPath string // optional UTF-8 TTF
	FontBoldPath    string // optional; defaults to the regular font
}

// Renderer draws the fixed single-page certificate layout.
type Renderer struct {
	baseURL  string
	regular  []byte
	bold     []byte
	qrEncode func(content string) ([]byte, error)
	logger   *zap.Logger
}

// NewRenderer creates a renderer. Font files, when configured, are read once here.
func NewRenderer(cfg RendererConfig, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{
		baseURL: cfg.BaseURL,
		logger:  logger,
		qrEncode: func(content string) ([]byte, error) {
			return qrcode.Encode(content, qrcode.Medium, 256)
		},
	}
	if cfg.FontRegularPath != "" {
		b, err := os.ReadFile(cfg.FontRegularPath)
		if err != nil {
			return nil, fmt.Errorf("read certificate font: %w", err)
		}
		r.regular = b
		r.bold = b
	}
	if cfg.FontBoldPath != "" {
		b, err := os.ReadFile(cfg.FontBoldPath)
		if err != nil {
			return nil, fmt.Errorf("read certificate bold font: %w", err)
		}
		r.bold = b
		if r.regular == nil {
			r.regular = b
		}
	}
	if r.regular == nil {
		logger.Warn("no UTF-8 certificate font configured, non-Latin names will be refused")
	}
	return r, nil
}

// encodableWithoutFont reports whether every field fits the cp1252 code page of the core fonts.
// Anything else would be printed as dots.
func encodableWithoutFont(fields ...string) error {
	enc := charmap.Windows1252.NewEncoder()
	for _, f := range fields {
		if _, err := enc.String(f); err != nil {
			return fmt.Errorf("%w: %q needs a UTF-8 font (CERT_FONT_REGULAR_PATH)", ErrRender, f)
		}
	}
	return nil
}

// VerificationURL is the public page a certificate's QR code and messages link to.
func VerificationURL(baseURL, code string) string {
	return baseURL + "/certificate/" + code
}

// Render returns the PDF bytes for one certificate.
func (r *Renderer) Render(data CertificateData) ([]byte, error) {
	organizer := data.OrganizerName
	if organizer == "" {
		organizer = DefaultOrganizerName
	}

	utf8 := r.regular != nil
	if !utf8 {
		if err := encodableWithoutFont(data.StudentName, data.WorkshopTitle, data.CompletionDate, data.VerificationCode, organizer); err != nil {
			return nil, err
		}
	}

	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetTitle("Certificate of Completion - "+data.WorkshopTitle, true)
	pdf.SetSubject(data.VerificationCode, true)
	pdf.SetAuthor(organizer, true)
	pdf.SetCreator("warsha certificates", true)

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if utf8 {
		family = utf8Family
		pdf.AddUTF8FontFromBytes(utf8Family, "", r.regular)
		pdf.AddUTF8FontFromBytes(utf8Family, "B", r.bold)
		tr = func(s string) string { return s }
	}
	pdf.AddPage()
	w, h := pdf.GetPageSize()

	pdf.SetDrawColor(frameColor[0], frameColor[1], frameColor[2])
	pdf.SetLineWidth(3)
	pdf.Rect(30, 30, w-60, h-60, "D")
	pdf.SetLineWidth(1)
	pdf.Rect(40, 40, w-80, h-80, "D")

	pdf.SetTextColor(0, 0, 0)
	centered := func(text, style string, size, y float64) {
		pdf.SetFont(family, style, size)
		text = tr(text)
		pdf.Text((w-pdf.GetStringWidth(text))/2, y, text)
	}

	centered("Certificate of Completion", "B", 32, 100)
	if utf8 {
		pdf.RTL()
		centered(localizedTitle, "", 24, 140)
		pdf.LTR()
	} else {
		r.logger.Debug("no UTF-8 font configured, skipping localized title")
	}
	centered("This certifies that", "", 16, 200)
	centered(data.StudentName, "B", 28, 250)
	centered("has successfully completed the workshop", "", 14, 300)
	centered(data.WorkshopTitle, "B", 20, 340)

	pdf.SetFont(family, "", 12)
	pdf.Text(100, h-100, tr("Date: "+data.CompletionDate))
	pdf.SetFont(family, "", 10)
	pdf.Text(100, h-80, tr("Verification Code: "+data.VerificationCode))

	if err := r.drawQR(pdf, data.VerificationCode, w-150, h-60-qrSize); err != nil {
		r.logger.Warn("qr code skipped", zap.String("verification_code", data.VerificationCode), zap.Error(err))
	} else {
		pdf.SetFont(family, "", 8)
		pdf.Text(w-150, h-45, "Scan to verify")
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(1)
	pdf.Line(w/2-100, h-150, w/2+100, h-150)
	centered(organizer, "", 12, h-130)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// drawQR places the verification QR code with its top-left corner at (x, y).
// Invalid image data is rejected before it reaches the document so the page stays intact.
func (r *Renderer) drawQR(pdf *fpdf.Fpdf, code string, x, y float64) error {
	img, err := r.qrEncode(VerificationURL(r.baseURL, code))
	if err != nil {
		return err
	}
	if _, err := png.DecodeConfig(bytes.NewReader(img)); err != nil {
		return fmt.Errorf("qr image: %w", err)
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	name := "qr-" + code
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
	pdf.ImageOptions(name, x, y, qrSize, qrSize, false, opts, 0, "")
	return nil
}
