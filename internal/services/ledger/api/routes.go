// Package api serves the ledger node's HTTP JSON interface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/Shreshtthh/EtherSignal/internal/chain"
	platformerrors "github.com/Shreshtthh/EtherSignal/internal/platform/errors"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/domain"
)

// maxRequestBody bounds JSON request bodies. Records are under 100 bytes and
// transactions are small, so 64 KiB leaves ample headroom.
const maxRequestBody = 64 << 10

// Service is the node surface the HTTP handlers expose.
type Service interface {
	SubmitTx(ctx context.Context, tx chain.Tx) (chain.Receipt, error)
	Deploy(ctx context.Context, owner, minPayment string) error
	Grant(ctx context.Context, deviceID string) (domain.Grant, bool, error)
	CanTransmit(ctx context.Context, deviceID string) (bool, error)
	GrantExpiration(ctx context.Context, deviceID string) (uint32, error)
	ContractBalance(ctx context.Context) (*big.Int, error)
	Events(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error)
	Account(ctx context.Context, address string) (domain.Account, error)
	RegisterSchema(ctx context.Context, name, layout string, recordSize int) (string, error)
	AppendRecord(ctx context.Context, schemaID string, record []byte) (uint64, error)
	RecordCount(ctx context.Context, schemaID string) (uint64, error)
	RecordAt(ctx context.Context, schemaID string, index uint64) ([]byte, error)
}

// RegisterRoutes mounts every node endpoint on the mux.
func RegisterRoutes(mux *http.ServeMux, service Service) {
	h := &handler{service: service}

	mux.HandleFunc("POST /v1/tx", h.submitTx)
	mux.HandleFunc("POST /v1/contract/deploy", h.deploy)
	mux.HandleFunc("GET /v1/contract/grants/{deviceId}", h.grant)
	mux.HandleFunc("GET /v1/contract/grants/{deviceId}/can-transmit", h.canTransmit)
	mux.HandleFunc("GET /v1/contract/grants/{deviceId}/expiration", h.grantExpiration)
	mux.HandleFunc("GET /v1/contract/balance", h.contractBalance)
	mux.HandleFunc("GET /v1/contract/events", h.events)
	mux.HandleFunc("POST /v1/schemas", h.registerSchema)
	mux.HandleFunc("POST /v1/streams/{schemaId}/records", h.appendRecord)
	mux.HandleFunc("GET /v1/streams/{schemaId}/records/count", h.recordCount)
	mux.HandleFunc("GET /v1/streams/{schemaId}/records/{index}", h.recordAt)
	mux.HandleFunc("GET /v1/accounts/{address}", h.account)
}

type handler struct {
	service Service
}

func (h *handler) submitTx(w http.ResponseWriter, r *http.Request) {
	var tx chain.Tx
	if !decodeBody(w, r, &tx) {
		return
	}
	receipt, err := h.service.SubmitTx(r.Context(), tx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *handler) deploy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Owner      string `json:"owner"`
		MinPayment string `json:"minPayment"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.service.Deploy(r.Context(), body.Owner, body.MinPayment); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "deployed"})
}

func (h *handler) grant(w http.ResponseWriter, r *http.Request) {
	grant, found, err := h.service.Grant(r.Context(), r.PathValue("deviceId"))
	if err != nil {
		writeError(w, err)
		return
	}
	info := chain.GrantInfo{Exists: found}
	if found {
		info.Provider = grant.Provider
		info.PaidAmount = grant.PaidAmount.String()
		info.FrequencyMHz = grant.FrequencyMHz
		info.ExpiresAt = grant.ExpiresAt
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handler) canTransmit(w http.ResponseWriter, r *http.Request) {
	can, err := h.service.CanTransmit(r.Context(), r.PathValue("deviceId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		CanTransmit bool `json:"canTransmit"`
	}{CanTransmit: can})
}

func (h *handler) grantExpiration(w http.ResponseWriter, r *http.Request) {
	expiresAt, err := h.service.GrantExpiration(r.Context(), r.PathValue("deviceId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ExpiresAt uint32 `json:"expiresAt"`
	}{ExpiresAt: expiresAt})
}

func (h *handler) contractBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.ContractBalance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Balance string `json:"balance"`
	}{Balance: balance.String()})
}

type eventBody struct {
	Seq             int64  `json:"seq"`
	Type            string `json:"type"`
	DeviceID        string `json:"deviceId,omitempty"`
	Provider        string `json:"provider,omitempty"`
	FrequencyMHz    uint32 `json:"frequencyMHz,omitempty"`
	DurationSeconds uint32 `json:"durationSeconds,omitempty"`
	Amount          string `json:"amount"`
	Timestamp       int64  `json:"timestamp"`
}

func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	afterSeq, err := queryInt(r, "afterSeq", 0)
	if err != nil {
		writeError(w, platformerrors.Wrap(platformerrors.CodeRecordMalformed, "invalid afterSeq", err))
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, platformerrors.Wrap(platformerrors.CodeRecordMalformed, "invalid limit", err))
		return
	}

	events, err := h.service.Events(r.Context(), afterSeq, int(limit))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]eventBody, 0, len(events))
	for _, event := range events {
		amount := "0"
		if event.Amount != nil {
			amount = event.Amount.String()
		}
		out = append(out, eventBody{
			Seq:             event.Seq,
			Type:            string(event.Type),
			DeviceID:        event.DeviceID,
			Provider:        event.Provider,
			FrequencyMHz:    event.FrequencyMHz,
			DurationSeconds: event.DurationSeconds,
			Amount:          amount,
			Timestamp:       event.Timestamp.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Events []eventBody `json:"events"`
	}{Events: out})
}

func (h *handler) registerSchema(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string `json:"name"`
		Layout     string `json:"layout"`
		RecordSize int    `json:"recordSize"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	id, err := h.service.RegisterSchema(r.Context(), body.Name, body.Layout, body.RecordSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		SchemaID string `json:"schemaId"`
	}{SchemaID: id})
}

func (h *handler) appendRecord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Record []byte `json:"record"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	index, err := h.service.AppendRecord(r.Context(), r.PathValue("schemaId"), body.Record)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Index uint64 `json:"index"`
	}{Index: index})
}

func (h *handler) recordCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.RecordCount(r.Context(), r.PathValue("schemaId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Count uint64 `json:"count"`
	}{Count: count})
}

func (h *handler) recordAt(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(r.PathValue("index"), 10, 64)
	if err != nil {
		writeError(w, platformerrors.Wrap(platformerrors.CodeRecordMalformed, "invalid record index", err))
		return
	}
	record, err := h.service.RecordAt(r.Context(), r.PathValue("schemaId"), index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Index  uint64 `json:"index"`
		Record []byte `json:"record"`
	}{Index: index, Record: record})
}

func (h *handler) account(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Account(r.Context(), r.PathValue("address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chain.AccountInfo{
		Address: account.Address,
		Balance: account.Balance.String(),
		Nonce:   account.Nonce,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, platformerrors.Wrap(platformerrors.CodeRecordMalformed, "invalid request body", err))
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := platformerrors.CodeOf(err)
	message := "internal error"
	var domainErr *platformerrors.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	} else if code != platformerrors.CodeUnknown {
		message = err.Error()
	}
	writeJSON(w, code.HTTPStatus(), struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{Code: string(code), Message: message})
}
