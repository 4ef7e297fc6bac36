package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
	"github.com/zinrai/l2network-mvp-go/internal/logger"
	"github.com/zinrai/l2network-mvp-go/internal/usecase"
)

type L2NetworkHandler struct {
	useCase       *usecase.L2NetworkUseCase
	securityGroup *usecase.SecurityGroupUseCase
	gatherer      prometheus.Gatherer
}

// NewL2NetworkHandler returns a handler for the allocator API. securityGroup
// may be nil when no NSX manager is configured.
func NewL2NetworkHandler(useCase *usecase.L2NetworkUseCase, securityGroup *usecase.SecurityGroupUseCase, gatherer prometheus.Gatherer) *L2NetworkHandler {
	return &L2NetworkHandler{useCase: useCase, securityGroup: securityGroup, gatherer: gatherer}
}

func (h *L2NetworkHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(withRequestLogger)

	r.HandleFunc("/vlans", h.listVlanIDs).Methods(http.MethodGet)
	r.HandleFunc("/vlans/reserve", h.reserveVlanID).Methods(http.MethodPost)
	r.HandleFunc("/vlans/{id:[0-9]+}", h.getVlanID).Methods(http.MethodGet)
	r.HandleFunc("/vlans/{id:[0-9]+}/release", h.releaseVlanID).Methods(http.MethodPost)
	r.HandleFunc("/vlans/{id:[0-9]+}", h.deleteVlanID).Methods(http.MethodDelete)

	r.HandleFunc("/vlan-bindings", h.listVlanBindings).Methods(http.MethodGet)
	r.HandleFunc("/vlan-bindings", h.addVlanBinding).Methods(http.MethodPost)
	r.HandleFunc("/vlan-bindings/{network_id}", h.getVlanBinding).Methods(http.MethodGet)
	r.HandleFunc("/vlan-bindings/{network_id}", h.updateVlanBinding).Methods(http.MethodPut)
	r.HandleFunc("/vlan-bindings/{network_id}", h.removeVlanBinding).Methods(http.MethodDelete)

	r.HandleFunc("/portprofiles", h.listPortProfiles).Methods(http.MethodGet)
	r.HandleFunc("/portprofiles", h.addPortProfile).Methods(http.MethodPost)
	r.HandleFunc("/portprofiles/{uuid}", h.getPortProfile).Methods(http.MethodGet)
	r.HandleFunc("/portprofiles/{uuid}", h.updatePortProfile).Methods(http.MethodPut)
	r.HandleFunc("/portprofiles/{uuid}", h.removePortProfile).Methods(http.MethodDelete)

	r.HandleFunc("/portprofile-bindings", h.listPortProfileBindings).Methods(http.MethodGet)
	r.HandleFunc("/portprofile-bindings", h.addPortProfileBinding).Methods(http.MethodPost)
	r.HandleFunc("/portprofile-bindings/{portprofile_id}", h.getPortProfileBinding).Methods(http.MethodGet)
	r.HandleFunc("/portprofile-bindings/{portprofile_id}", h.updatePortProfileBinding).Methods(http.MethodPut)
	r.HandleFunc("/portprofile-bindings/{portprofile_id}", h.removePortProfileBinding).Methods(http.MethodDelete)

	r.HandleFunc("/securitygroups/{sg_id}/members/{vnic_id}", h.addSecurityGroupMember).Methods(http.MethodPost)

	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindResourceExhausted:
		return http.StatusServiceUnavailable
	case domain.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.G(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.G(r.Context()).WithError(err).Warn("Unable to encode response")
	}
}

// vlanIDVar parses the {id} route variable. IDs that do not fit an int or
// fall outside the VLAN range can never be in the pool.
func vlanIDVar(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.Atoi(raw)
	if err != nil || !domain.IsValidVlanID(id) {
		http.Error(w, "vlan id "+raw+" not found", http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func (h *L2NetworkHandler) listVlanIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.useCase.ListVlanIDs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ids)
}

func (h *L2NetworkHandler) reserveVlanID(w http.ResponseWriter, r *http.Request) {
	id, err := h.useCase.ReserveVlanID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, domain.VlanID{VlanID: id, Used: true})
}

func (h *L2NetworkHandler) getVlanID(w http.ResponseWriter, r *http.Request) {
	id, ok := vlanIDVar(w, r)
	if !ok {
		return
	}
	used, err := h.useCase.IsVlanIDUsed(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, domain.VlanID{VlanID: id, Used: used})
}

func (h *L2NetworkHandler) releaseVlanID(w http.ResponseWriter, r *http.Request) {
	id, ok := vlanIDVar(w, r)
	if !ok {
		return
	}
	if err := h.useCase.ReleaseVlanID(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *L2NetworkHandler) deleteVlanID(w http.ResponseWriter, r *http.Request) {
	id, ok := vlanIDVar(w, r)
	if !ok {
		return
	}
	if err := h.useCase.DeleteVlanID(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *L2NetworkHandler) listVlanBindings(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.useCase.ListVlanBindings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bindings)
}

func (h *L2NetworkHandler) addVlanBinding(w http.ResponseWriter, r *http.Request) {
	var request domain.VlanBinding
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if request.NetworkID == "" {
		http.Error(w, "network_id is required", http.StatusBadRequest)
		return
	}
	binding, err := h.useCase.AddVlanBinding(r.Context(), request.VlanID, request.VlanName, request.NetworkID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, binding)
}

func (h *L2NetworkHandler) getVlanBinding(w http.ResponseWriter, r *http.Request) {
	binding, err := h.useCase.GetVlanBinding(r.Context(), mux.Vars(r)["network_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, binding)
}

func (h *L2NetworkHandler) updateVlanBinding(w http.ResponseWriter, r *http.Request) {
	var update domain.VlanBindingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	binding, err := h.useCase.UpdateVlanBinding(r.Context(), mux.Vars(r)["network_id"], update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, binding)
}

func (h *L2NetworkHandler) removeVlanBinding(w http.ResponseWriter, r *http.Request) {
	if err := h.useCase.RemoveVlanBinding(r.Context(), mux.Vars(r)["network_id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *L2NetworkHandler) listPortProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.useCase.ListPortProfiles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profiles)
}

func (h *L2NetworkHandler) addPortProfile(w http.ResponseWriter, r *http.Request) {
	var request domain.PortProfile
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if request.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	profile, err := h.useCase.AddPortProfile(r.Context(), request.Name, request.VlanID, request.QoS)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, profile)
}

func (h *L2NetworkHandler) getPortProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.useCase.GetPortProfile(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

func (h *L2NetworkHandler) updatePortProfile(w http.ResponseWriter, r *http.Request) {
	var update domain.PortProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	profile, err := h.useCase.UpdatePortProfile(r.Context(), mux.Vars(r)["uuid"], update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

func (h *L2NetworkHandler) removePortProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.useCase.RemovePortProfile(r.Context(), mux.Vars(r)["uuid"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *L2NetworkHandler) listPortProfileBindings(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.useCase.ListPortProfileBindings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bindings)
}

func (h *L2NetworkHandler) addPortProfileBinding(w http.ResponseWriter, r *http.Request) {
	var request domain.PortProfileBinding
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if request.PortProfileID == "" {
		http.Error(w, "portprofile_id is required", http.StatusBadRequest)
		return
	}
	binding, err := h.useCase.AddPortProfileBinding(r.Context(), request.TenantID, request.PortID, request.PortProfileID, request.Default)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, binding)
}

func (h *L2NetworkHandler) getPortProfileBinding(w http.ResponseWriter, r *http.Request) {
	portProfileID := mux.Vars(r)["portprofile_id"]
	binding, err := h.useCase.GetPortProfileBinding(r.Context(), portProfileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if binding == nil {
		http.Error(w, "no binding for port profile "+portProfileID, http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, binding)
}

func (h *L2NetworkHandler) updatePortProfileBinding(w http.ResponseWriter, r *http.Request) {
	var update domain.PortProfileBindingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	binding, err := h.useCase.UpdatePortProfileBinding(r.Context(), mux.Vars(r)["portprofile_id"], update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, binding)
}

func (h *L2NetworkHandler) removePortProfileBinding(w http.ResponseWriter, r *http.Request) {
	portID := r.URL.Query().Get("port_id")
	if portID == "" {
		http.Error(w, "port_id is required", http.StatusBadRequest)
		return
	}
	if err := h.useCase.RemovePortProfileBinding(r.Context(), mux.Vars(r)["portprofile_id"], portID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *L2NetworkHandler) addSecurityGroupMember(w http.ResponseWriter, r *http.Request) {
	if h.securityGroup == nil {
		http.Error(w, "NSX manager is not configured", http.StatusServiceUnavailable)
		return
	}
	vars := mux.Vars(r)
	task := h.securityGroup.AddPortToSecurityGroup(vars["sg_id"], vars["vnic_id"])
	writeJSON(w, r, http.StatusAccepted, struct {
		SecurityGroupID string `json:"security_group_id"`
		MemberID        string `json:"member_id"`
		State           string `json:"state"`
	}{
		SecurityGroupID: vars["sg_id"],
		MemberID:        vars["vnic_id"],
		State:           task.State().String(),
	})
}
