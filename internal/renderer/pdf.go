// Пакет renderer — отрисовка документа SLR в PDF через headless Chromium.
package renderer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"

	"github.com/AECHE7/Fanders-sub003/internal/domain/model"
)

//go:embed templates/slr.html
var templateFS embed.FS

// ErrEmptyOutput — браузер вернул пустой PDF.
var ErrEmptyOutput = errors.New("renderer produced empty document")

const (
	defaultTimeout   = 30 * time.Second
	issuedDateLayout = "January 2, 2006"
	shortDateLayout  = "Jan 02, 2006"
	stampLayout      = "January 2, 2006 3:04 PM"
)

// Options — параметры рендерера.
type Options struct {
	// CompanyName — название организации в шапке документа
	CompanyName string
	// ChromePath — путь к бинарнику Chromium (пусто — поиск в PATH)
	ChromePath string
	// Timeout — ограничение на печать одного документа
	Timeout time.Duration
}

// Document — данные одного документа SLR.
type Document struct {
	DocumentNumber    string
	Loan              *model.Loan
	Schedule          []model.ScheduleEntry
	SignatureRequired bool
	IssuedAt          time.Time
}

// PDFRenderer печатает HTML-шаблон документа в PDF.
type PDFRenderer struct {
	opts   Options
	tmpl   *template.Template
	logger *slog.Logger
}

// New создаёт рендерер и разбирает встроенный шаблон.
func New(opts Options, logger *slog.Logger) (*PDFRenderer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	tmpl, err := template.New("slr.html").Funcs(template.FuncMap{
		"peso":  model.FormatPeso,
		"upper": strings.ToUpper,
		"orNA": func(s string) string {
			if strings.TrimSpace(s) == "" {
				return "N/A"
			}
			return s
		},
	}).ParseFS(templateFS, "templates/slr.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора шаблона SLR: %w", err)
	}
	return &PDFRenderer{
		opts:   opts,
		tmpl:   tmpl,
		logger: logger.With(slog.String("component", "pdf_renderer")),
	}, nil
}

// Render строит HTML документа и печатает его в PDF.
func (r *PDFRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	html, err := r.BuildHTML(doc)
	if err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if r.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.opts.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	runCtx, cancelRun := chromedp.NewContext(allocCtx)
	defer cancelRun()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, r.opts.Timeout)
	defer cancelTimeout()

	start := time.Now()
	var pdf []byte
	err = chromedp.Run(runCtx,
		chromedp.Navigate("data:text/html,"+url.PathEscape(html)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, perr := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if perr == nil {
				pdf = buf
			}
			return perr
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка печати PDF: %w", err)
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyOutput
	}

	r.logger.Debug("PDF документ отрисован",
		slog.String("document_number", doc.DocumentNumber),
		slog.Int("size", len(pdf)),
		slog.Duration("duration", time.Since(start)),
	)
	return pdf, nil
}

// BuildHTML заполняет шаблон документа.
func (r *PDFRenderer) BuildHTML(doc Document) (string, error) {
	if doc.Loan == nil {
		return "", errors.New("loan is required")
	}
	data := r.viewOf(doc)

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("ошибка заполнения шаблона SLR: %w", err)
	}
	return buf.String(), nil
}

type scheduleRow struct {
	model.ScheduleEntry
	Balance float64
}

type documentView struct {
	CompanyName        string
	DocumentNumber     string
	IssuedAt           string
	GeneratedAt        string
	ApplicationDate    string
	ReceiptDate        string
	ExpectedCompletion string
	TermWeeks          int
	Loan               *model.Loan
	Schedule           []model.ScheduleEntry
	Rows               []scheduleRow
	TotalRepayment     float64
	WeeklyPayment      float64
	SignatureRequired  bool
}

func (r *PDFRenderer) viewOf(doc Document) documentView {
	loan := doc.Loan
	issued := doc.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}

	// Отсчёт графика: выдача, затем одобрение, затем дата документа.
	receipt := issued
	switch {
	case loan.DisbursedAt != nil:
		receipt = *loan.DisbursedAt
	case loan.ApprovedAt != nil:
		receipt = *loan.ApprovedAt
	}

	total := decimal.Zero
	for _, e := range doc.Schedule {
		total = total.Add(decimal.NewFromFloat(e.ExpectedPayment))
	}

	rows := make([]scheduleRow, 0, len(doc.Schedule))
	balance := total
	for _, e := range doc.Schedule {
		if e.DueDate == "" {
			e.DueDate = receipt.AddDate(0, 0, 7*e.Week).Format(shortDateLayout)
		}
		balance = balance.Sub(decimal.NewFromFloat(e.ExpectedPayment))
		rows = append(rows, scheduleRow{ScheduleEntry: e, Balance: balance.InexactFloat64()})
	}

	v := documentView{
		CompanyName:       r.opts.CompanyName,
		DocumentNumber:    doc.DocumentNumber,
		IssuedAt:          issued.Format(issuedDateLayout),
		GeneratedAt:       issued.Format(stampLayout),
		ReceiptDate:       receipt.Format(shortDateLayout),
		TermWeeks:         loan.EffectiveTermWeeks(),
		Loan:              loan,
		Schedule:          doc.Schedule,
		Rows:              rows,
		TotalRepayment:    total.InexactFloat64(),
		SignatureRequired: doc.SignatureRequired,
	}
	if !loan.CreatedAt.IsZero() {
		v.ApplicationDate = loan.CreatedAt.Format(shortDateLayout)
	}
	if len(rows) > 0 {
		v.WeeklyPayment = rows[0].ExpectedPayment
		v.ExpectedCompletion = rows[len(rows)-1].DueDate
	}
	return v
}
