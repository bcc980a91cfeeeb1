package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"globalblock/internal/api/dto"
	"globalblock/internal/auth"
	"globalblock/internal/identity"
	"globalblock/internal/iprange"
	"globalblock/internal/lookup"
	"globalblock/internal/manager"
	"globalblock/internal/status"
)

// lookupRequester answers "would this requester be blocked here". Wikis
// call it on edit and signup attempts; the result is scoped to the local
// wiki the service is configured for.
func (s *Server) lookupRequester(w http.ResponseWriter, r *http.Request) {
	viewerID, authErr := auth.AccountIDFromRequest(r)
	if authErr != nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()

	requester := identity.Requester{
		IP:          strings.TrimSpace(query.Get("ip")),
		IsTemporary: query.Get("temp") == "true",
	}

	if rawAccount := strings.TrimSpace(query.Get("account")); rawAccount != "" {
		if accountID, err := strconv.ParseUint(rawAccount, 10, 64); err == nil {
			requester.AccountID = accountID
		} else if id, ok := s.ids.ResolveAccountID(r.Context(), rawAccount); ok {
			requester.AccountID = id
		} else {
			writeError(w, "Unknown account", http.StatusBadRequest)
			return
		}
	}

	for _, hop := range strings.Split(query.Get("xff"), ",") {
		if hop = strings.TrimSpace(hop); hop != "" {
			requester.XFF = append(requester.XFF, hop)
		}
	}

	if requester.IP != "" && !iprange.IsValidIP(requester.IP) {
		writeError(w, "Invalid ip", http.StatusBadRequest)
		return
	}
	if requester.AccountID == 0 && requester.IP == "" {
		writeError(w, "Nothing to look up", http.StatusBadRequest)
		return
	}

	result, err := s.engine.GetBlockForRequester(r.Context(), lookup.NewRequest(requester))
	if err != nil {
		log.Error("lookup failed", "error", err.Error(), "ip", requester.IP)
		writeError(w, "Lookup failed", http.StatusInternalServerError)
		return
	}

	blocked := result.Blocked()
	if right := strings.TrimSpace(query.Get("right")); blocked && right != "" {
		blocked = lookup.AppliesToRight(result.Block, right)
	}

	out := dto.LookupResult{Blocked: blocked}
	if blocked {
		block := result.Block
		out.BlockID = block.ID
		out.Target = s.formatter.TargetForViewer(r.Context(), block, viewerID)
		out.Performer = s.formatter.PerformerForViewer(r.Context(), block, viewerID)
		out.Reason = block.Reason
		out.Expiry = manager.FormatExpiry(block.ExpiresAt)
		out.AnonOnly = block.AnonOnly
		out.MatchedViaXFF = result.MatchedViaXFF
		out.MatchedIP = result.MatchedIP
		out.Message = s.formatter.BlockMessage(r.Context(), result, viewerID)
	}

	writeJSON(w, http.StatusOK, out)
}

// triggerAutoblock is the hook wikis call when a globally blocked account
// acts from an address. It is idempotent on repeats from the same address.
func (s *Server) triggerAutoblock(w http.ResponseWriter, r *http.Request) {
	var trigger dto.AutoblockTrigger
	if err := json.NewDecoder(r.Body).Decode(&trigger); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if trigger.AccountID == 0 || !iprange.IsValidIP(trigger.IP) {
		writeError(w, "Invalid trigger", http.StatusBadRequest)
		return
	}

	if s.recentIPs != nil {
		if err := s.recentIPs.Record(r.Context(), trigger.AccountID, trigger.IP); err != nil {
			log.Warn("failed to record recent ip", "account_id", trigger.AccountID, "error", err.Error())
		}
	}

	outcome, err := s.propagator.OnAccountAction(r.Context(), trigger.AccountID, trigger.IP)
	if err != nil {
		log.Error("autoblock trigger failed", "error", err.Error(), "account_id", trigger.AccountID)
		writeStatus(w, status.Failure(status.CodeInternalError))
		return
	}

	writeStatus(w, outcome)
}
