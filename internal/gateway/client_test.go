package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

func newTestClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewHTTPClient(Session{BaseURL: srv.URL, Token: testToken}, 2*time.Second, nil)
	return client, srv
}

func TestFetchSnapshotParsesWaveKeys(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/dn/detail/DN-0001", r.URL.Path)
		require.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"no_dn": "DN-0001",
			"po_no": "PO-0009",
			"plan_delivery_date": "2024-03-01",
			"confirm_update_at": "2024-03-02T08:00:00Z",
			"driver_name": "John Doe",
			"plat_number": "B1234AB",
			"confirm_at": {"wave_2": "2024-03-03T08:00:00Z", "confirmAt3": "2024-03-04T08:00:00Z"},
			"version": "v7",
			"detail": [{
				"dn_detail_no": "L1",
				"part_no": "P-100",
				"dn_qty": 100,
				"qty_confirm": 80,
				"qty_delivery": 80,
				"receipt_qty": 80,
				"outstanding": {"wave_2": [15], "wave_3": [5]}
			}]
		}`))
	})

	snap, err := client.FetchSnapshot(context.Background(), "DN-0001")
	require.NoError(t, err)
	require.Equal(t, "DN-0001", snap.NoDN)
	require.Equal(t, "v7", snap.Version)
	require.NotNil(t, snap.ConfirmUpdateAt)
	require.Len(t, snap.ConfirmAt, 2)
	require.Contains(t, snap.ConfirmAt, 2)
	require.Contains(t, snap.ConfirmAt, 3)

	require.Len(t, snap.Lines, 1)
	line := snap.Lines[0]
	require.Equal(t, int64(100), line.DNQty)
	require.NotNil(t, line.QtyConfirm)
	require.Equal(t, int64(80), *line.QtyConfirm)
	require.Equal(t, map[int]int64{2: 15, 3: 5}, line.Outstanding)
}

func TestFetchSnapshotEscapesBusinessKey(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/dn/detail/DN%2F2024%2001", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"no_dn":"DN/2024 01","detail":[]}`))
	})

	snap, err := client.FetchSnapshot(context.Background(), "DN/2024 01")
	require.NoError(t, err)
	require.Equal(t, "DN/2024 01", snap.NoDN)
}

func TestFetchSnapshotRejectsMalformedWaveKey(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"no_dn":"DN-1","detail":[{"dn_detail_no":"L1","outstanding":{"wave_x":[1]}}]}`))
	})

	_, err := client.FetchSnapshot(context.Background(), "DN-1")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestSubmitQuantitiesBodyShape(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/dn/update", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "DN-0001", body["no_dn"])
		require.Equal(t, "v7", body["version"])
		updates := body["updates"].([]interface{})
		require.Len(t, updates, 1)
		first := updates[0].(map[string]interface{})
		require.Equal(t, "L1", first["dn_detail_no"])
		require.Equal(t, float64(80), first["qty_confirm"])

		_, _ = w.Write([]byte(`{"no_dn":"DN-0001","version":"v8","detail":[]}`))
	})

	snap, err := client.SubmitQuantities(context.Background(), UpdateCommand{
		NoDN:    "DN-0001",
		Version: "v7",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 80}},
	})
	require.NoError(t, err)
	require.Equal(t, "v8", snap.Version)
}

func TestUpdateDriverInfoBodyShape(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/dn/update/driver-info", r.URL.Path)
		var body driverInfoPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "B1234AB", body.PlatNumber)
		require.Equal(t, "John Doe", body.DriverName)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	err := client.UpdateDriverInfo(context.Background(), "DN-0001", "John Doe", "B1234AB")
	require.NoError(t, err)
}

func TestConflictResponseBecomesConflictError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	_, err := client.SubmitQuantities(context.Background(), UpdateCommand{NoDN: "DN-0001"})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "DN-0001", conflict.NoDN)
}

func TestServerErrorBecomesNetworkError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchSnapshot(context.Background(), "DN-0001")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, http.StatusBadGateway, netErr.StatusCode)
}

func TestTimeoutBecomesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(Session{BaseURL: srv.URL, Token: testToken}, 50*time.Millisecond, nil)
	_, err := client.FetchSnapshot(context.Background(), "DN-0001")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestParseWaveKey(t *testing.T) {
	for key, want := range map[string]int{"wave_2": 2, "confirmAt3": 3, "4": 4} {
		got, err := parseWaveKey(key)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	for _, key := range []string{"wave_", "wave_0", "confirmAtX", "w2", ""} {
		_, err := parseWaveKey(key)
		require.Error(t, err, key)
	}
}
