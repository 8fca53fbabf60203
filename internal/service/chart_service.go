package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/export"
)

type chartStatsReader interface {
	PeriodStats(ctx context.Context, professorID string) ([]models.PeriodStat, error)
	Distribution(ctx context.Context, professorID string) ([]models.RatingBucket, error)
}

type professorSearcher interface {
	Search(ctx context.Context, filter models.ProfessorFilter) ([]models.Professor, error)
}

type barChartRenderer interface {
	RenderBarChart(chart export.BarChart) ([]byte, error)
}

type chartBuilder func(ctx context.Context, s *ChartService, professorID string) (*models.ChartData, error)

// chartBuilders is the closed set of chart kinds. Scatter covers every professor
// and ignores the professor id.
var chartBuilders = map[models.ChartKind]chartBuilder{
	models.ChartBar:     buildDistributionChart,
	models.ChartLine:    buildPeriodChart,
	models.ChartScatter: buildScatterChart,
}

// ChartService turns review statistics into renderer agnostic chart data.
type ChartService struct {
	stats      chartStatsReader
	professors professorFinder
	search     professorSearcher
	pdf        barChartRenderer
}

// NewChartService constructs a ChartService.
func NewChartService(stats chartStatsReader, professors professorFinder, search professorSearcher, pdf barChartRenderer) *ChartService {
	return &ChartService{stats: stats, professors: professors, search: search, pdf: pdf}
}

// Kinds lists the supported chart kinds.
func (s *ChartService) Kinds() []models.ChartKind {
	kinds := make([]models.ChartKind, 0, len(chartBuilders))
	for k := range chartBuilders {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Build produces the chart of the given kind.
func (s *ChartService) Build(ctx context.Context, kind models.ChartKind, professorID string) (*models.ChartData, error) {
	builder, ok := chartBuilders[kind]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownStrategy, fmt.Sprintf("unknown chart kind: %s", kind))
	}
	return builder(ctx, s, professorID)
}

// RenderPDF draws a bar chart of a professor's rating distribution.
func (s *ChartService) RenderPDF(ctx context.Context, kind models.ChartKind, professorID string) ([]byte, error) {
	if kind != models.ChartBar {
		if _, ok := chartBuilders[kind]; !ok {
			return nil, appErrors.Clone(appErrors.ErrUnknownStrategy, fmt.Sprintf("unknown chart kind: %s", kind))
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "only bar charts can be rendered as PDF")
	}
	chart, err := s.Build(ctx, kind, professorID)
	if err != nil {
		return nil, err
	}
	body, err := s.pdf.RenderBarChart(export.BarChart{Title: chart.Title, Labels: chart.Labels, Values: chart.Series[0].Values})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render chart")
	}
	return body, nil
}

func buildDistributionChart(ctx context.Context, s *ChartService, professorID string) (*models.ChartData, error) {
	professor, err := findProfessor(ctx, s.professors, professorID)
	if err != nil {
		return nil, err
	}
	buckets, err := s.stats.Distribution(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rating distribution")
	}
	filled := fillDistribution(buckets)
	labels := make([]string, len(filled))
	values := make([]float64, len(filled))
	for i, b := range filled {
		labels[i] = fmt.Sprintf("%d star", b.Rating)
		values[i] = float64(b.Count)
	}
	return &models.ChartData{
		Kind:   models.ChartBar,
		Title:  "Rating distribution: " + professor.Name,
		XLabel: "Rating",
		YLabel: "Reviews",
		Labels: labels,
		Series: []models.ChartSeries{{Name: "Reviews", Values: values}},
	}, nil
}

func buildPeriodChart(ctx context.Context, s *ChartService, professorID string) (*models.ChartData, error) {
	professor, err := findProfessor(ctx, s.professors, professorID)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats.PeriodStats(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period statistics")
	}
	stats = sortPeriods(stats)
	labels := make([]string, len(stats))
	values := make([]float64, len(stats))
	for i, st := range stats {
		labels[i] = string(st.Period)
		values[i] = st.AverageRating
	}
	return &models.ChartData{
		Kind:   models.ChartLine,
		Title:  "Average rating per period: " + professor.Name,
		XLabel: "Period",
		YLabel: "Average rating",
		Labels: labels,
		Series: []models.ChartSeries{{Name: "Average rating", Values: values}},
	}, nil
}

func buildScatterChart(ctx context.Context, s *ChartService, _ string) (*models.ChartData, error) {
	professors, err := s.search.Search(ctx, models.ProfessorFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list professors")
	}
	points := make([]models.ChartPoint, 0, len(professors))
	for _, p := range professors {
		points = append(points, models.ChartPoint{X: float64(p.ReviewCount), Y: p.AverageRating, Label: p.Name})
	}
	return &models.ChartData{
		Kind:   models.ChartScatter,
		Title:  "Average rating vs number of reviews",
		XLabel: "Reviews",
		YLabel: "Average rating",
		Series: []models.ChartSeries{{Name: "Professors", Points: points}},
	}, nil
}
