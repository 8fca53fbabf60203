package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/export"
)

// Report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

type totalsReader interface {
	Totals(ctx context.Context) (models.SiteTotals, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Report is a generated document ready for download.
type Report struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportService builds administrator reports.
type ReportService struct {
	professors professorSearcher
	totals     totalsReader
	ranking    *RankingService
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
	now        func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(professors professorSearcher, totals totalsReader, ranking *RankingService, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		professors: professors,
		totals:     totals,
		ranking:    ranking,
		csv:        csv,
		pdf:        pdf,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var rankingHeaders = []string{"Position", "Professor", "Department", "Average rating", "Reviews"}

// ProfessorRanking exports every professor ordered by rankingKey in the given format.
func (s *ReportService) ProfessorRanking(ctx context.Context, rankingKey, format string) (*Report, error) {
	key, err := s.ranking.Resolve(rankingKey)
	if err != nil {
		return nil, err
	}
	professors, err := s.professors.Search(ctx, models.ProfessorFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list professors")
	}
	ordered, err := s.ranking.Order(key, professors)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{Headers: rankingHeaders, Rows: make([]map[string]string, 0, len(ordered))}
	for i, p := range ordered {
		data.Rows = append(data.Rows, map[string]string{
			"Position":       strconv.Itoa(i + 1),
			"Professor":      p.Name,
			"Department":     p.Department,
			"Average rating": strconv.FormatFloat(p.AverageRating, 'f', 2, 64),
			"Reviews":        strconv.Itoa(p.ReviewCount),
		})
	}

	base := fmt.Sprintf("professor-ranking-%s-%s", key, s.now().Format("20060102"))
	var report *Report
	switch format {
	case ReportFormatCSV:
		body, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV")
		}
		report = &Report{Filename: base + ".csv", ContentType: "text/csv", Body: body}
	case ReportFormatPDF:
		body, err := s.pdf.Render(data, "Professor ranking ("+key+")")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF")
		}
		report = &Report{Filename: base + ".pdf", ContentType: "application/pdf", Body: body}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format: "+format)
	}

	s.logger.Info("ranking report generated", zap.String("ranking", key), zap.String("format", format), zap.Int("rows", len(data.Rows)))
	return report, nil
}

// Totals returns the global counters.
func (s *ReportService) Totals(ctx context.Context) (*models.SiteTotals, error) {
	totals, err := s.totals.Totals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load totals")
	}
	return &totals, nil
}
