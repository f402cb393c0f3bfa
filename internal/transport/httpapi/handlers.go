package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"custodyledger/internal/core"
	"custodyledger/pkg/domain"
)

type registerRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

type digestRequest struct {
	Digest string `json:"digest"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

type verifyResponse struct {
	Code    domain.ItemCode            `json:"code"`
	Outcome domain.VerificationOutcome `json:"outcome"`
	Result  string                     `json:"result"`
}

// caller returns the authenticated identity; it writes a 401 and reports
// false when the header is absent or malformed.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	raw := strings.TrimSpace(r.Header.Get(HeaderCaller))
	if raw == "" {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing "+HeaderCaller+" header", nil)
		return domain.Identity{}, false
	}
	id, err := domain.ParseIdentity(raw)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error(), nil)
		return domain.Identity{}, false
	}
	return id, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if domain.CodeOf(err) == domain.CodeInternal || domain.CodeOf(err) == domain.CodeUnknown {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
	}
	writeLedgerError(w, r, err)
}

func badBody(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, "BAD_BODY", err.Error(), nil)
}

func pathIdentity(r *http.Request) (domain.Identity, error) {
	return domain.ParseIdentity(chi.URLParam(r, "identity"))
}

func pathCode(r *http.Request) (domain.ItemCode, error) {
	return domain.ParseItemCode(chi.URLParam(r, "code"))
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.Members(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	id, err := domain.ParseIdentity(req.Identity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	assigned, _, err := s.svc.Register(r.Context(), caller, id, role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"member": assigned})
}

func (s *Server) handleRoleOf(w http.ResponseWriter, r *http.Request) {
	id, err := pathIdentity(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	role, err := s.svc.RoleOf(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": id, "role": role.String(), "member": role.IsMember()})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := pathIdentity(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	revoked, _, err := s.svc.Unregister(r.Context(), caller, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"member": revoked})
}

func (s *Server) handleCurrentDigest(w http.ResponseWriter, r *http.Request) {
	gate, err := s.svc.CurrentDigest(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gate": gate})
}

func (s *Server) handleUpdateHash(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req digestRequest
	if err := readJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	digest, err := domain.ParseDigest(req.Digest)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	gate, _, err := s.svc.UpdateHash(r.Context(), caller, digest)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gate": gate})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Documents(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.fail(w, r, domain.Wrap(domain.CodeInternal, "list documents", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleAnchorDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, r, http.StatusBadRequest, string(domain.CodeInvalidArgument), "document key required", nil)
		return
	}
	body := http.MaxBytesReader(w, r.Body, s.maxDocumentBytes)
	anchor, err := s.svc.AnchorDocument(r.Context(), caller, key, r.Header.Get("Content-Type"), body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "document exceeds upload limit", nil)
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"anchor": anchor})
}

func (s *Server) handleCheckDocument(w http.ResponseWriter, r *http.Request) {
	check, err := s.svc.CheckAnchoredDocument(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"check": check})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Items(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	code, err := pathCode(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status, err := s.svc.GetStatus(r.Context(), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": status})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	code, err := pathCode(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	var parties [3]domain.Identity
	for i, name := range []string{"manufacturer", "distributor", "pharmacist"} {
		id, err := domain.ParseIdentity(q.Get(name))
		if err != nil {
			s.fail(w, r, domain.Wrap(domain.CodeInvalidArgument, name+" query parameter", err))
			return
		}
		parties[i] = id
	}
	outcome, err := s.svc.VerifyDrug(r.Context(), code, parties[0], parties[1], parties[2])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Code: code, Outcome: outcome, Result: outcome.String()})
}

func (s *Server) handleManufacture(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	code, err := pathCode(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeItem(w, r)(s.svc.ManufactureDrug(r.Context(), caller, code))
}

type digestOp func(ctx context.Context, caller core.Identity, code core.ItemCode, digest core.Digest) (core.Item, core.Result, error)

type amountOp func(ctx context.Context, caller core.Identity, code core.ItemCode, amount uint64) (core.Item, core.Result, error)

func (s *Server) digestTransition(op digestOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		code, err := pathCode(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var req digestRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w, r, err)
			return
		}
		digest, err := domain.ParseDigest(req.Digest)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeItem(w, r)(op(r.Context(), caller, code, digest))
	}
}

// amountTransition serves the quoting and paying transitions; amount is the
// quoted price or the tendered payment depending on the operation.
func (s *Server) amountTransition(op amountOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		code, err := pathCode(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var req amountRequest
		if err := readJSON(r, &req); err != nil {
			badBody(w, r, err)
			return
		}
		s.writeItem(w, r)(op(r.Context(), caller, code, req.Amount))
	}
}

func (s *Server) writeItem(w http.ResponseWriter, r *http.Request) func(core.Item, core.Result, error) {
	return func(item core.Item, _ core.Result, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	}
}

func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"accounts": s.accounts.Accounts()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathIdentity(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": id, "balance": s.accounts.Balance(id)})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	role, err := s.svc.RoleOf(r.Context(), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if role != domain.RoleRegulator {
		s.fail(w, r, domain.Errorf(domain.CodeAccessDenied, "only a regulator may deposit funds, caller holds %s", role))
		return
	}
	id, err := pathIdentity(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req depositRequest
	if err := readJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if err := s.accounts.Deposit(id, req.Amount); err != nil {
		s.fail(w, r, domain.Wrap(domain.CodeInvalidArgument, "deposit", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": id, "balance": s.accounts.Balance(id)})
}
