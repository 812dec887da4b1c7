package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/x/cash"
	"github.com/iov-one/treasury/x/factory"
	"github.com/iov-one/treasury/x/sigs"
	"github.com/iov-one/treasury/x/vault"
)

type InfoHandler struct{}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	JSONResp(w, http.StatusOK, struct {
		BuildHash    string `json:"build_hash"`
		BuildVersion string `json:"build_version"`
	}{
		BuildHash:    treasury.GitCommit,
		BuildVersion: treasury.Version(),
	})
}

// DefaultHandler is used to handle the request that no other handler wants.
type DefaultHandler struct{}

func (h *DefaultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// No trailing slash.
	if len(r.URL.Path) > 1 && r.URL.Path[len(r.URL.Path)-1] == '/' {
		path := strings.TrimRight(r.URL.Path, "/")
		JSONRedirect(w, http.StatusPermanentRedirect, path)
		return
	}
	JSONErr(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

// VaultsHandler serves the registry and all vault operations:
//
//   GET  /vaults
//   POST /vaults
//   GET  /vaults/{addr}
//   POST /vaults/{addr}/transfers
//   GET  /vaults/{addr}/transfers/{id}
//   POST /vaults/{addr}/transfers/{id}/approve
//   POST /vaults/{addr}/quorum
//   GET  /vaults/{addr}/quorum/{id}
//   POST /vaults/{addr}/quorum/{id}/approve
type VaultsHandler struct {
	Registry *factory.Registry
	Debug    bool
}

func (h *VaultsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chunks := pathChunks(strings.TrimPrefix(r.URL.Path, "/vaults"))
	if len(chunks) == 0 {
		switch r.Method {
		case "GET":
			h.list(w, r)
		case "POST":
			h.create(w, r)
		default:
			JSONErr(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		}
		return
	}

	addr, err := treasury.ParseAddress(chunks[0])
	if err != nil {
		JSONErr(w, http.StatusNotFound, "invalid vault address")
		return
	}
	engine, err := h.Registry.Instance(addr)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var id uint64
	if len(chunks) > 2 {
		if id, err = strconv.ParseUint(chunks[2], 10, 64); err != nil {
			JSONErr(w, http.StatusNotFound, "request ID must be a number")
			return
		}
	}

	route := strings.Join(append([]string{r.Method}, routeOf(chunks[1:])...), " ")
	switch route {
	case "GET":
		h.details(w, r, engine)
	case "POST transfers":
		h.proposeTransfer(w, r, engine)
	case "GET transfers {id}":
		h.transfer(w, r, engine, id)
	case "POST transfers {id} approve":
		h.approveTransfer(w, r, engine, id)
	case "POST quorum":
		h.proposeQuorumUpdate(w, r, engine)
	case "GET quorum {id}":
		h.quorumUpdate(w, r, engine, id)
	case "POST quorum {id} approve":
		h.approveQuorumUpdate(w, r, engine, id)
	default:
		JSONErr(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	}
}

// routeOf replaces the request ID chunk with a placeholder.
func routeOf(chunks []string) []string {
	res := append([]string(nil), chunks...)
	if len(res) > 1 {
		res[1] = "{id}"
	}
	return res
}

func (h *VaultsHandler) list(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.Registry.ListInstances()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if addrs == nil {
		addrs = []treasury.Address{}
	}
	JSONResp(w, http.StatusOK, addrs)
}

type createVaultRequest struct {
	Quorum  uint32             `json:"quorum"`
	Signers []treasury.Address `json:"signers"`
}

func (h *VaultsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createVaultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, err := h.Registry.CreateInstance(r.Context(), req.Quorum, req.Signers)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusCreated, struct {
		Address treasury.Address `json:"address"`
	}{Address: addr})
}

type vaultDetails struct {
	Address       treasury.Address   `json:"address"`
	Quorum        uint32             `json:"quorum"`
	Signers       []treasury.Address `json:"signers"`
	TxCount       uint64             `json:"tx_count"`
	QuorumCount   uint64             `json:"quorum_count"`
	NoOfApprovers uint32             `json:"no_of_approvers"`
}

func (h *VaultsHandler) details(w http.ResponseWriter, r *http.Request, e *vault.Engine) {
	res := vaultDetails{
		Address: e.Address(),
		Signers: e.Signers(),
	}
	var err error
	if res.Quorum, err = e.Quorum(); err != nil {
		h.fail(w, r, err)
		return
	}
	if res.TxCount, err = e.TxCount(); err != nil {
		h.fail(w, r, err)
		return
	}
	if res.QuorumCount, err = e.QuorumCount(); err != nil {
		h.fail(w, r, err)
		return
	}
	if res.NoOfApprovers, err = e.NoOfApprovers(); err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusOK, res)
}

type proposeTransferRequest struct {
	Amount    uint64           `json:"amount"`
	Recipient treasury.Address `json:"recipient"`
	Asset     treasury.Address `json:"asset"`
}

type idResponse struct {
	ID uint64 `json:"id"`
}

func (h *VaultsHandler) proposeTransfer(w http.ResponseWriter, r *http.Request, e *vault.Engine) {
	var req proposeTransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := e.ProposeTransfer(r.Context(), req.Amount, req.Recipient, req.Asset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusCreated, idResponse{ID: id})
}

type transferView struct {
	*vault.TransferRequest
	Approvals []treasury.Address `json:"approvals"`
}

func (h *VaultsHandler) transfer(w http.ResponseWriter, r *http.Request, e *vault.Engine, id uint64) {
	req, err := e.Transfer(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	approvals, err := e.TransferApprovals(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusOK, transferView{TransferRequest: req, Approvals: nonNil(approvals)})
}

func (h *VaultsHandler) approveTransfer(w http.ResponseWriter, r *http.Request, e *vault.Engine, id uint64) {
	if err := e.ApproveTransfer(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.transfer(w, r, e, id)
}

type proposeQuorumRequest struct {
	Quorum uint32 `json:"quorum"`
}

func (h *VaultsHandler) proposeQuorumUpdate(w http.ResponseWriter, r *http.Request, e *vault.Engine) {
	var req proposeQuorumRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := e.ProposeQuorumUpdate(r.Context(), req.Quorum)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusCreated, idResponse{ID: id})
}

type quorumUpdateView struct {
	*vault.QuorumUpdateRequest
	Approvals []treasury.Address `json:"approvals"`
}

func (h *VaultsHandler) quorumUpdate(w http.ResponseWriter, r *http.Request, e *vault.Engine, id uint64) {
	req, err := e.QuorumUpdate(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	approvals, err := e.QuorumUpdateApprovals(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusOK, quorumUpdateView{QuorumUpdateRequest: req, Approvals: nonNil(approvals)})
}

func (h *VaultsHandler) approveQuorumUpdate(w http.ResponseWriter, r *http.Request, e *vault.Engine, id uint64) {
	if err := e.ApproveQuorumUpdate(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.quorumUpdate(w, r, e, id)
}

func (h *VaultsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	JSONError(w, r, err, h.Debug)
}

// CashHandler serves the cash ledger:
//
//   GET  /cash/balance/{holder}/{asset}
//   POST /cash/send
//   POST /cash/approve
//   POST /cash/transfer-from
//   POST /cash/issue
type CashHandler struct {
	Ledger *cash.Ledger
	Debug  bool
}

type cashRequest struct {
	Owner     treasury.Address `json:"owner"`
	Spender   treasury.Address `json:"spender"`
	Recipient treasury.Address `json:"recipient"`
	Asset     treasury.Address `json:"asset"`
	Amount    uint64           `json:"amount"`
}

func (h *CashHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chunks := pathChunks(strings.TrimPrefix(r.URL.Path, "/cash"))
	if len(chunks) == 0 {
		JSONErr(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	if chunks[0] == "balance" {
		if r.Method != "GET" {
			JSONErr(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
			return
		}
		h.balance(w, r, chunks[1:])
		return
	}

	if len(chunks) != 1 {
		JSONErr(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}
	if r.Method != "POST" {
		JSONErr(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}

	var op func(cashRequest) error
	switch chunks[0] {
	case "send":
		op = func(req cashRequest) error {
			return h.Ledger.Send(r.Context(), req.Recipient, req.Asset, req.Amount)
		}
	case "approve":
		op = func(req cashRequest) error {
			return h.Ledger.Approve(r.Context(), req.Spender, req.Asset, req.Amount)
		}
	case "transfer-from":
		op = func(req cashRequest) error {
			return h.Ledger.TransferFrom(r.Context(), req.Owner, req.Recipient, req.Asset, req.Amount)
		}
	case "issue":
		op = func(req cashRequest) error {
			return h.Ledger.Issue(r.Context(), req.Recipient, req.Asset, req.Amount)
		}
	default:
		JSONErr(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	var req cashRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := op(req); err != nil {
		JSONError(w, r, err, h.Debug)
		return
	}
	JSONResp(w, http.StatusOK, struct{}{})
}

func (h *CashHandler) balance(w http.ResponseWriter, r *http.Request, chunks []string) {
	if len(chunks) != 2 {
		JSONErr(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}
	holder, err := treasury.ParseAddress(chunks[0])
	if err != nil {
		JSONErr(w, http.StatusBadRequest, "invalid holder address")
		return
	}
	asset, err := treasury.ParseAddress(chunks[1])
	if err != nil {
		JSONErr(w, http.StatusBadRequest, "invalid asset address")
		return
	}
	amount, err := h.Ledger.BalanceOf(r.Context(), holder, asset)
	if err != nil {
		JSONError(w, r, err, h.Debug)
		return
	}
	JSONResp(w, http.StatusOK, struct {
		Amount uint64 `json:"amount"`
	}{Amount: amount})
}

// SigsHandler serves the sequence a signer must use with its next
// request:
//
//   GET /sigs/{addr}
type SigsHandler struct {
	Sequences *sigs.Controller
	Debug     bool
}

func (h *SigsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chunks := pathChunks(strings.TrimPrefix(r.URL.Path, "/sigs"))
	if len(chunks) != 1 {
		JSONErr(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}
	if r.Method != "GET" {
		JSONErr(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}
	addr, err := treasury.ParseAddress(chunks[0])
	if err != nil {
		JSONErr(w, http.StatusBadRequest, "invalid address")
		return
	}
	seq, err := h.Sequences.Sequence(addr)
	if err != nil {
		JSONError(w, r, err, h.Debug)
		return
	}
	JSONResp(w, http.StatusOK, sequenceResponse{Sequence: seq})
}

type sequenceResponse struct {
	Sequence int64 `json:"sequence"`
}

func pathChunks(path string) []string {
	var chunks []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

func nonNil(addrs []treasury.Address) []treasury.Address {
	if addrs == nil {
		return []treasury.Address{}
	}
	return addrs
}

// decodeBody decodes the JSON request body into dest. On failure an error
// response is written and false returned.
func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		JSONErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusCodes maps error kinds to HTTP status codes. The first match wins.
var statusCodes = []struct {
	kind *errors.Error
	code int
}{
	{errors.ErrUnauthorized, http.StatusUnauthorized},
	{sigs.ErrInvalidSequence, http.StatusUnauthorized},
	{errors.ErrNotFound, http.StatusNotFound},
	{vault.ErrInvalidRequestID, http.StatusNotFound},
	{vault.ErrAlreadyExecuted, http.StatusConflict},
	{vault.ErrDuplicateApproval, http.StatusConflict},
	{errors.ErrDuplicate, http.StatusConflict},
	{errors.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	{errors.ErrTransferRejected, http.StatusUnprocessableEntity},
	{vault.ErrInvalidConfiguration, http.StatusBadRequest},
	{vault.ErrInvalidAddress, http.StatusBadRequest},
	{vault.ErrInvalidQuorum, http.StatusBadRequest},
	{errors.ErrInvalidAmount, http.StatusBadRequest},
	{errors.ErrOverflow, http.StatusBadRequest},
	{errors.ErrInput, http.StatusBadRequest},
	{errors.ErrEmpty, http.StatusBadRequest},
	{errors.ErrModel, http.StatusBadRequest},
}

func httpStatus(err error) int {
	for _, s := range statusCodes {
		if s.kind.Is(err) {
			return s.code
		}
	}
	return http.StatusInternalServerError
}

// JSONError writes an operation failure. Internal errors are redacted
// unless debug is set.
func JSONError(w http.ResponseWriter, r *http.Request, err error, debug bool) {
	code, msg := errors.ABCIInfo(err, debug)
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		treasury.GetLogger(r.Context()).Error("request failed", "err", err)
	}
	recordError(code)
	JSONResp(w, status, struct {
		Errors []string `json:"errors"`
		Code   uint32   `json:"code"`
	}{
		Errors: []string{msg},
		Code:   code,
	})
}

// JSONResp write content as JSON encoded response.
func JSONResp(w http.ResponseWriter, code int, content interface{}) {
	b, err := json.MarshalIndent(content, "", "\t")
	if err != nil {
		code = http.StatusInternalServerError
		b = []byte(`{"errors":["Internal Server Error"]}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

// JSONErr write single error as JSON encoded response.
func JSONErr(w http.ResponseWriter, code int, errText string) {
	JSONErrs(w, code, []string{errText})
}

// JSONErrs write multiple errors as JSON encoded response.
func JSONErrs(w http.ResponseWriter, code int, errs []string) {
	resp := struct {
		Errors []string `json:"errors"`
	}{
		Errors: errs,
	}
	JSONResp(w, code, resp)
}

// JSONRedirect return redirect response, but with JSON formatted body.
func JSONRedirect(w http.ResponseWriter, code int, urlStr string) {
	w.Header().Set("Location", urlStr)
	var content = struct {
		Code     int
		Location string
	}{
		Code:     code,
		Location: urlStr,
	}
	JSONResp(w, code, content)
}
