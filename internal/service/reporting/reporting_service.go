package reporting

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/pricing"
	repo "github.com/mamadbah2/staffops/internal/repository/sheets"
)

const (
	dateLayout        = "2006-01-02"
	invoicesDataRange = "Invoices!A:H"
)

// InvoiceSummary aggregates exported invoices over a period.
type InvoiceSummary struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Invoices int            `json:"invoices"`
	Totals   pricing.Totals `json:"totals"`
}

// Service exposes lightweight analytics over the invoice export sheet.
type Service struct {
	repo   repo.Repository
	logger *zap.Logger
}

// NewService wires a new reporting service instance. A nil repository yields
// empty summaries.
func NewService(repository repo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repository, logger: logger}
}

// Enabled reports whether a sheet is configured.
func (s *Service) Enabled() bool {
	return s.repo != nil
}

// SummarizeInvoices totals the invoices exported between start and end, inclusive.
func (s *Service) SummarizeInvoices(ctx context.Context, start, end time.Time) (InvoiceSummary, error) {
	summary := InvoiceSummary{From: start.Format(dateLayout), To: end.Format(dateLayout)}
	if s.repo == nil {
		return summary, nil
	}

	rows, err := s.repo.ReadRange(ctx, invoicesDataRange)
	if err != nil {
		return summary, fmt.Errorf("load invoices range: %w", err)
	}

	startDay := truncateDay(start)
	endDay := truncateDay(end)

	for _, row := range rows {
		if len(row) < 8 {
			continue
		}

		dateValue, err := parseDate(row[0])
		if err != nil {
			// header row or hand-edited cell
			s.logger.Debug("skip invoice row with invalid date", zap.Any("value", row[0]), zap.Error(err))
			continue
		}
		if dateValue.Before(startDay) || dateValue.After(endDay) {
			continue
		}

		line, err := parseLine(row)
		if err != nil {
			s.logger.Debug("skip invoice row with invalid amounts", zap.Any("invoice", row[1]), zap.Error(err))
			continue
		}

		summary.Totals.Add(line)
		summary.Invoices++
	}

	return summary, nil
}

// WeeklyReport formats the invoices of the seven days ending at now.
func (s *Service) WeeklyReport(ctx context.Context, now time.Time) (string, error) {
	start := now.AddDate(0, 0, -6)
	summary, err := s.SummarizeInvoices(ctx, start, now)
	if err != nil {
		return "", err
	}
	return FormatSummary(summary), nil
}

// FormatSummary renders a summary as one line of text.
func FormatSummary(summary InvoiceSummary) string {
	if summary.Invoices == 0 {
		return fmt.Sprintf("Invoices (%s-%s): none generated.", summary.From, summary.To)
	}
	t := summary.Totals
	return fmt.Sprintf("Invoices (%s-%s): %d invoices, %.2f hours, billed $%.2f, cost $%.2f, profit $%.2f (%.1f%% margin).",
		summary.From, summary.To, summary.Invoices, t.Hours, t.ClientAmount, t.ContractorAmount, t.Profit, t.MarginPct)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseLine(row []interface{}) (pricing.Line, error) {
	var line pricing.Line
	var err error
	if line.Hours, err = parseFloat(row[3]); err != nil {
		return line, err
	}
	if line.ContractorAmount, err = parseFloat(row[4]); err != nil {
		return line, err
	}
	if line.ClientAmount, err = parseFloat(row[5]); err != nil {
		return line, err
	}
	if line.Profit, err = parseFloat(row[6]); err != nil {
		return line, err
	}
	return line, nil
}

func parseDate(value interface{}) (time.Time, error) {
	str := fmt.Sprint(value)
	if str == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(str) > 10 {
		str = str[:10]
	}
	return time.Parse(dateLayout, str)
}

func parseFloat(value interface{}) (float64, error) {
	str := strings.TrimSpace(fmt.Sprint(value))
	str = strings.TrimPrefix(str, "$")
	str = strings.ReplaceAll(str, ",", "")
	if str == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return strconv.ParseFloat(str, 64)
}
