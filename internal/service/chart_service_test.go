package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/export"
)

func newChartFixture() (*mockReviewReader, *ChartService) {
	db := newMemDB()
	db.addProfessor("p1", "Ada Lovelace")
	db.addProfessor("p2", "Alan Turing")
	db.professors["p1"].AverageRating, db.professors["p1"].ReviewCount = 4.5, 2
	reader := &mockReviewReader{
		periods: []models.PeriodStat{
			{Period: "2025-1", ReviewCount: 1, AverageRating: 5},
			{Period: "2024-2", ReviewCount: 1, AverageRating: 4},
		},
		buckets: []models.RatingBucket{{Rating: 4, Count: 1}, {Rating: 5, Count: 1}},
	}
	professors := &fakeProfessorRepo{db: db}
	return reader, NewChartService(reader, professors, professors, export.NewPDFExporter())
}

func TestChartServiceBar(t *testing.T) {
	_, svc := newChartFixture()

	chart, err := svc.Build(context.Background(), models.ChartBar, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ChartBar, chart.Kind)
	assert.Len(t, chart.Labels, 5)
	assert.Equal(t, []float64{0, 0, 0, 1, 1}, chart.Series[0].Values)
}

func TestChartServiceLineOrdersPeriods(t *testing.T) {
	_, svc := newChartFixture()

	chart, err := svc.Build(context.Background(), models.ChartLine, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-2", "2025-1"}, chart.Labels)
	assert.Equal(t, []float64{4, 5}, chart.Series[0].Values)
}

func TestChartServiceScatter(t *testing.T) {
	_, svc := newChartFixture()

	chart, err := svc.Build(context.Background(), models.ChartScatter, "")
	require.NoError(t, err)
	require.Len(t, chart.Series[0].Points, 2)
	assert.Equal(t, models.ChartPoint{X: 2, Y: 4.5, Label: "Ada Lovelace"}, chart.Series[0].Points[0])
}

func TestChartServiceErrors(t *testing.T) {
	_, svc := newChartFixture()

	_, err := svc.Build(context.Background(), models.ChartKind("pie"), "p1")
	assert.True(t, errors.Is(err, appErrors.ErrUnknownStrategy))

	_, err = svc.Build(context.Background(), models.ChartBar, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.RenderPDF(context.Background(), models.ChartLine, "p1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	assert.Equal(t, []models.ChartKind{models.ChartBar, models.ChartLine, models.ChartScatter}, svc.Kinds())
}

func TestChartServiceRenderPDF(t *testing.T) {
	_, svc := newChartFixture()

	body, err := svc.RenderPDF(context.Background(), models.ChartBar, "p1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}
