package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/launchpro/creative-engine/internal/creative"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewClientFromDB(sqlx.NewDb(mockDB, "sqlmock"), zaptest.NewLogger(t)), mock
}

func TestGetOffer(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, vertical, description FROM offers WHERE id = $1`)).
		WithArgs("offer-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "vertical", "description"}).
			AddRow("offer-1", "Car Loans", "finance", "Fast approval car loans"))

	offer, err := client.GetOffer(context.Background(), "offer-1")
	require.NoError(t, err)
	assert.Equal(t, "Car Loans", offer.Name)
	assert.Equal(t, "finance", offer.Vertical)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOfferNotFound(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, vertical, description FROM offers WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "vertical", "description"}))

	_, err := client.GetOffer(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOfferNotFound)
}

func TestTopAdsBackfillAndDedupe(t *testing.T) {
	client, mock := newMockClient(t)

	adCols := []string{"id", "headline", "country", "vertical", "ctr"}

	// Two exact-country matches, fewer than the cap of 5.
	mock.ExpectQuery(`SELECT id, headline, country, vertical, ctr\s+FROM ads\s+WHERE vertical = \$1 AND country = \$2`).
		WithArgs("finance", "CO", 5).
		WillReturnRows(sqlmock.NewRows(adCols).
			AddRow("ad-1", "Aprueba tu crédito hoy", "CO", "finance", 0.041).
			AddRow("ad-2", "Tu carro te espera", "CO", "finance", 0.038))

	// Backfill from other countries, including a duplicate id.
	mock.ExpectQuery(`SELECT id, headline, country, vertical, ctr\s+FROM ads\s+WHERE vertical = \$1 AND country != \$2`).
		WithArgs("finance", "CO", 5).
		WillReturnRows(sqlmock.NewRows(adCols).
			AddRow("ad-3", "Drive today, pay later", "MX", "finance", 0.052).
			AddRow("ad-1", "Aprueba tu crédito hoy", "PE", "finance", 0.044).
			AddRow("ad-4", "Financia tu auto", "AR", "finance", 0.031))

	ads, err := client.TopAds(context.Background(), "finance", "CO", 5)
	require.NoError(t, err)
	require.Len(t, ads, 4)

	// Exact-country results come first, duplicate id skipped.
	assert.Equal(t, "ad-1", ads[0].ID)
	assert.Equal(t, "ad-2", ads[1].ID)
	assert.Equal(t, "ad-3", ads[2].ID)
	assert.Equal(t, "ad-4", ads[3].ID)

	// Exact-country ads score as full market matches, backfill is discounted.
	assert.Equal(t, 1.0, ads[0].Similarity)
	assert.Equal(t, 1.0, ads[1].Similarity)
	assert.Equal(t, 0.75, ads[2].Similarity)
	assert.Equal(t, 0.75, ads[3].Similarity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopAdsSkipsBackfillWhenFull(t *testing.T) {
	client, mock := newMockClient(t)

	rows := sqlmock.NewRows([]string{"id", "headline", "country", "vertical", "ctr"})
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		rows.AddRow(id, "headline "+id, "CO", "finance", 0.03)
	}
	mock.ExpectQuery(`WHERE vertical = \$1 AND country = \$2`).
		WithArgs("finance", "CO", 5).
		WillReturnRows(rows)

	ads, err := client.TopAds(context.Background(), "finance", "CO", 5)
	require.NoError(t, err)
	assert.Len(t, ads, 5)
	// No second query expected.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovedSnippets(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`FROM approved_snippets`).
		WithArgs("finance", "es").
		WillReturnRows(sqlmock.NewRows([]string{"snippet_type", "text", "language", "vertical"}).
			AddRow("headline", "Tu préstamo en minutos", "es", "finance").
			AddRow("cta", "Solicita ahora", "es", "finance"))

	snippets, err := client.ApprovedSnippets(context.Background(), "finance", "es")
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.Equal(t, creative.SnippetHeadline, snippets[0].Type)
	assert.Equal(t, creative.SnippetCTA, snippets[1].Type)
}

func TestSimilarCampaigns(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`FROM campaigns`).
		WithArgs("finance", "CO", "META", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "country", "platform"}).
			AddRow("c-1", "CO Auto Q3", "CO", "META"))

	campaigns, err := client.SimilarCampaigns(context.Background(), "finance", "CO", creative.PlatformMeta, 3)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "CO Auto Q3", campaigns[0].Name)
}
