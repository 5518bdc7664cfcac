package fsdev

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecomfp/pkg/contracts/featurestore"
)

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer(apiKey).Routes())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body, out interface{}) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createGroup(t *testing.T, base string, version int) featurestore.GroupResponse {
	t.Helper()
	var group featurestore.GroupResponse
	resp := doJSON(t, http.MethodPost, base+"/api/v1/projects/ecommerce/feature-groups",
		featurestore.CreateGroupRequest{
			Name:       "e_commerce_data",
			Version:    version,
			PrimaryKey: []string{"id"},
			EventTime:  "invoice_date",
		}, &group)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return group
}

func sampleRows() []featurestore.FeatureRow {
	base := time.Date(2011, time.December, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]featurestore.FeatureRow, 6)
	for i := range rows {
		rows[i] = featurestore.FeatureRow{
			ID:          int64(i),
			InvoiceDate: base.AddDate(0, 0, i),
			Country:     int8(i % 3),
			TotalPrice:  float64(10 * (i + 1)),
		}
	}
	return rows
}

func groupURL(base string, version int) string {
	return fmt.Sprintf("%s/api/v1/projects/ecommerce/feature-groups/e_commerce_data/versions/%d", base, version)
}

func TestCreateGroupIsIdempotent(t *testing.T) {
	server := newTestServer(t, "")

	first := createGroup(t, server.URL, 1)
	require.NotEmpty(t, first.ID)

	var second featurestore.GroupResponse
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/projects/ecommerce/feature-groups",
		featurestore.CreateGroupRequest{Name: "e_commerce_data", Version: 1}, &second)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateGroupRejectsInvalidVersion(t *testing.T) {
	server := newTestServer(t, "")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/projects/ecommerce/feature-groups",
		featurestore.CreateGroupRequest{Name: "e_commerce_data", Version: 0}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInsertRowsAccumulate(t *testing.T) {
	server := newTestServer(t, "")
	createGroup(t, server.URL, 1)

	req := featurestore.InsertRowsRequest{
		Columns: []string{"id", "invoice_date", "country", "total_price"},
		Rows:    sampleRows(),
	}

	var first featurestore.InsertRowsResponse
	doJSON(t, http.MethodPost, groupURL(server.URL, 1)+"/rows", req, &first)
	assert.Equal(t, 6, first.Inserted)
	assert.Equal(t, 6, first.RowCount)

	// overwrite false: a second insert appends
	var second featurestore.InsertRowsResponse
	doJSON(t, http.MethodPost, groupURL(server.URL, 1)+"/rows", req, &second)
	assert.Equal(t, 12, second.RowCount)

	var overwritten featurestore.InsertRowsResponse
	req.Overwrite = true
	doJSON(t, http.MethodPost, groupURL(server.URL, 1)+"/rows", req, &overwritten)
	assert.Equal(t, 6, overwritten.RowCount)
}

func TestInsertRowsUnknownGroup(t *testing.T) {
	server := newTestServer(t, "")

	resp := doJSON(t, http.MethodPost, groupURL(server.URL, 9)+"/rows",
		featurestore.InsertRowsRequest{}, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateFeatureDescription(t *testing.T) {
	server := newTestServer(t, "")
	createGroup(t, server.URL, 1)
	doJSON(t, http.MethodPost, groupURL(server.URL, 1)+"/rows", featurestore.InsertRowsRequest{
		Columns: []string{"id", "invoice_date", "country", "total_price"},
		Rows:    sampleRows(),
	}, nil)

	resp := doJSON(t, http.MethodPut, groupURL(server.URL, 1)+"/features/total_price",
		featurestore.UpdateFeatureRequest{Description: "Total price at that day"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, groupURL(server.URL, 1)+"/features/discount",
		featurestore.UpdateFeatureRequest{Description: "nope"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestComputeStatistics(t *testing.T) {
	server := newTestServer(t, "")
	createGroup(t, server.URL, 1)
	doJSON(t, http.MethodPost, groupURL(server.URL, 1)+"/rows", featurestore.InsertRowsRequest{
		Columns: []string{"id", "invoice_date", "country", "total_price"},
		Rows:    sampleRows(),
	}, nil)

	var stats featurestore.Statistics
	resp := doJSON(t, http.MethodPost, groupURL(server.URL, 1)+"/statistics",
		featurestore.StatisticsRequest{Enabled: true, Histograms: true, Correlations: true}, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 6, stats.RowCount)

	price := stats.Features["total_price"]
	assert.Equal(t, 10.0, price.Min)
	assert.Equal(t, 60.0, price.Max)
	assert.InDelta(t, 35.0, price.Mean, 1e-9)
	assert.NotEmpty(t, price.Histogram)

	// total_price grows linearly with id, so the correlation is exactly 1
	assert.InDelta(t, 1.0, stats.Correlations["id"]["total_price"], 1e-9)
	assert.InDelta(t, 1.0, stats.Correlations["id"]["id"], 1e-9)
}

func TestGetStatisticsBeforeCompute(t *testing.T) {
	server := newTestServer(t, "")
	createGroup(t, server.URL, 1)

	resp, err := http.Get(groupURL(server.URL, 1) + "/statistics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIKeyEnforcement(t *testing.T) {
	server := newTestServer(t, "secret")

	// missing key
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/projects/ecommerce/feature-groups",
		featurestore.CreateGroupRequest{Name: "e_commerce_data", Version: 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// correct key
	payload, err := json.Marshal(featurestore.CreateGroupRequest{Name: "e_commerce_data", Version: 1})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost,
		server.URL+"/api/v1/projects/ecommerce/feature-groups", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")

	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusCreated, authed.StatusCode)

	// health stays open
	health, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestPearson(t *testing.T) {
	assert.InDelta(t, 1.0, pearson([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, pearson([]float64{1, 2, 3}, []float64{6, 4, 2}), 1e-9)
	assert.Zero(t, pearson([]float64{1, 1, 1}, []float64{2, 4, 6}))
}
