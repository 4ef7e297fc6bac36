package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
	"github.com/zinrai/l2network-mvp-go/internal/infrastructure/memstore"
	"github.com/zinrai/l2network-mvp-go/internal/metrics"
	"github.com/zinrai/l2network-mvp-go/internal/nsx/securitygroup"
	"github.com/zinrai/l2network-mvp-go/internal/usecase"
)

type recordingAdder struct {
	mu    sync.Mutex
	calls []string
}

func (a *recordingAdder) AddMemberToSecurityGroup(ctx context.Context, securityGroupID, memberID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, securityGroupID+"/"+memberID)
	return nil
}

type testServer struct {
	router    http.Handler
	adder     *recordingAdder
	scheduler *securitygroup.Scheduler
}

func newTestServer(t *testing.T, withNSX bool) *testServer {
	store, err := memstore.New()
	require.NoError(t, err)
	uc := usecase.NewL2NetworkUseCase(store)
	require.NoError(t, uc.InitializeVlanPool(context.Background(), 100, 102))

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	ts := &testServer{}
	var sg *usecase.SecurityGroupUseCase
	if withNSX {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		ts.adder = &recordingAdder{}
		ts.scheduler = securitygroup.NewScheduler(ctx, ts.adder)
		sg = usecase.NewSecurityGroupUseCase(ts.scheduler)
	}
	ts.router = NewL2NetworkHandler(uc, sg, reg).Router()
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestVlanRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/vlans/reserve", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var reserved domain.VlanID
	decode(t, rec, &reserved)
	assert.Equal(t, domain.VlanID{VlanID: 100, Used: true}, reserved)

	rec = ts.do(t, http.MethodGet, "/vlans/100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.VlanID
	decode(t, rec, &got)
	assert.True(t, got.Used)

	rec = ts.do(t, http.MethodPost, "/vlans/100/release", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/vlans/4000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/vlans/4000", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/vlans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []domain.VlanID
	decode(t, rec, &all)
	assert.Len(t, all, 3)

	rec = ts.do(t, http.MethodGet, "/vlans/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVlanRoutesRejectIDsOutsideRange(t *testing.T) {
	ts := newTestServer(t, false)

	for _, id := range []string{"0", "4095", "70000", "99999999999999999999"} {
		for _, req := range []struct{ method, path string }{
			{http.MethodGet, "/vlans/" + id},
			{http.MethodPost, "/vlans/" + id + "/release"},
			{http.MethodDelete, "/vlans/" + id},
		} {
			rec := ts.do(t, req.method, req.path, "")
			assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", req.method, req.path)
		}
	}

	rec := ts.do(t, http.MethodPost, "/vlan-bindings", `{"vlan_id":70000,"vlan_name":"v","network_id":"net-9"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReserveExhaustedPool(t *testing.T) {
	ts := newTestServer(t, false)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/vlans/reserve", "").Code)
	}
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodPost, "/vlans/reserve", "").Code)
}

func TestVlanBindingRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/vlan-bindings", `{"vlan_id":100,"vlan_name":"v100","network_id":"net-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/vlan-bindings", `{"vlan_id":100,"vlan_name":"dup","network_id":"net-2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/vlan-bindings", `{"vlan_id":101}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/vlan-bindings/net-1", `{"vlan_name":"renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated domain.VlanBinding
	decode(t, rec, &updated)
	assert.Equal(t, domain.VlanBinding{VlanID: 100, VlanName: "renamed", NetworkID: "net-1"}, updated)

	rec = ts.do(t, http.MethodGet, "/vlan-bindings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []domain.VlanBinding
	decode(t, rec, &all)
	assert.Len(t, all, 1)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/vlan-bindings/net-1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/vlan-bindings/net-1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/vlan-bindings/net-1", `{}`).Code)
}

func TestPortProfileRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/portprofiles", `{"name":"gold","vlan_id":100,"qos":"high"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var profile domain.PortProfile
	decode(t, rec, &profile)
	require.NotEmpty(t, profile.UUID)

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/portprofiles", `{"name":"gold","vlan_id":101}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/portprofiles", `not json`).Code)

	rec = ts.do(t, http.MethodPut, "/portprofiles/"+profile.UUID, `{"qos":"low"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated domain.PortProfile
	decode(t, rec, &updated)
	assert.Equal(t, "low", updated.QoS)
	assert.Equal(t, "gold", updated.Name)

	rec = ts.do(t, http.MethodPost, "/portprofile-bindings", `{"tenant_id":"t1","port_id":"p1","portprofile_id":"`+profile.UUID+`","default":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/portprofile-bindings", `{"tenant_id":"t1","port_id":"p2","portprofile_id":"`+profile.UUID+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/portprofile-bindings/"+profile.UUID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var binding domain.PortProfileBinding
	decode(t, rec, &binding)
	assert.Equal(t, domain.PortProfileBinding{TenantID: "t1", PortID: "p1", PortProfileID: profile.UUID, Default: true}, binding)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodDelete, "/portprofile-bindings/"+profile.UUID, "").Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/portprofile-bindings/"+profile.UUID+"?port_id=p1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/portprofile-bindings/"+profile.UUID, "").Code)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/portprofiles/"+profile.UUID, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/portprofiles/"+profile.UUID, "").Code)
}

func TestSecurityGroupMemberRoute(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/securitygroups/securitygroup-7/members/vnic-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var body struct {
		SecurityGroupID string `json:"security_group_id"`
		MemberID        string `json:"member_id"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "securitygroup-7", body.SecurityGroupID)
	assert.Equal(t, "vnic-1", body.MemberID)

	ts.scheduler.Wait()
	assert.Equal(t, []string{"securitygroup-7/vnic-1"}, ts.adder.calls)
}

func TestSecurityGroupMemberRouteWithoutNSX(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/securitygroups/securitygroup-7/members/vnic-1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t, false)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/vlans/reserve", "").Code)

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "l2network_vlan_reservations_total")
}
