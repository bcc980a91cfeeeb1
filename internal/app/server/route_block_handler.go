package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"globalblock/internal/api/dto"
	"globalblock/internal/auth"
	"globalblock/internal/database"
	"globalblock/internal/domain"
	"globalblock/internal/manager"
	"globalblock/internal/status"
)

func (s *Server) listBlocks(w http.ResponseWriter, r *http.Request) {
	viewerID, authErr := auth.AccountIDFromRequest(r)
	if authErr != nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// A concrete target short-circuits the listing to its single block.
	if target := strings.TrimSpace(r.URL.Query().Get("target")); target != "" {
		block, outcome, err := s.blocks.ResolveActiveBlock(r.Context(), target)
		if err != nil {
			log.Error("error resolving target", "error", err.Error(), "target", target)
			writeError(w, "Failed to resolve target", http.StatusInternalServerError)
			return
		}
		page := dto.BlockPage{Blocks: []dto.BlockRow{}}
		if outcome.Succeeded() && block != nil {
			page.Blocks = append(page.Blocks, s.blockRow(r.Context(), block, viewerID))
		}
		writeJSON(w, http.StatusOK, page)
		return
	}

	filter := database.ListFilter{
		TargetType:   strings.TrimSpace(r.URL.Query().Get("type")),
		ExpiryBucket: strings.TrimSpace(r.URL.Query().Get("expiry")),
	}

	if rawBefore := r.URL.Query().Get("before"); rawBefore != "" {
		before, err := time.Parse(time.RFC3339, rawBefore)
		if err != nil {
			writeError(w, "Invalid before cursor", http.StatusBadRequest)
			return
		}
		filter.Before = &before
	}

	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		if limit, err := strconv.Atoi(rawLimit); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	blocks, err := s.store.ListBlocks(r.Context(), filter, s.clock.Now())
	if err != nil {
		log.Error("error listing blocks", "error", err.Error())
		writeError(w, "Failed to list blocks", http.StatusInternalServerError)
		return
	}

	page := dto.BlockPage{Blocks: make([]dto.BlockRow, 0, len(blocks))}
	for i := range blocks {
		page.Blocks = append(page.Blocks, s.blockRow(r.Context(), &blocks[i], viewerID))
	}
	if len(blocks) > 0 {
		page.NextBefore = blocks[len(blocks)-1].CreatedAt.Format(time.RFC3339Nano)
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getBlock(w http.ResponseWriter, r *http.Request) {
	viewerID, authErr := auth.AccountIDFromRequest(r)
	if authErr != nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	blockID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, "Invalid block id", http.StatusBadRequest)
		return
	}

	block, dbErr := s.store.BlockByID(r.Context(), blockID)
	if dbErr != nil {
		log.Error("error retrieving block", "error", dbErr.Error(), "block_id", blockID)
		writeError(w, "Failed to retrieve block", http.StatusInternalServerError)
		return
	}
	if block == nil || block.IsExpired(s.clock.Now()) {
		writeError(w, "Block not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, s.blockRow(r.Context(), block, viewerID))
}

func (s *Server) blockTarget(w http.ResponseWriter, r *http.Request) {
	performerID, authErr := auth.AccountIDFromRequest(r)
	if authErr != nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var cmd dto.BlockCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	expiresAt, err := manager.ParseExpiry(cmd.Expiry, s.clock.Now())
	if err != nil {
		writeError(w, "Invalid expiry: "+err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := s.blocks.Block(r.Context(), cmd.Target, cmd.Reason, expiresAt,
		manager.Performer{AccountID: performerID, OriginWiki: s.policy.LocalWikiID},
		manager.Options{
			AnonOnly:             cmd.AnonOnly,
			AllowAccountCreation: cmd.AllowAccountCreation,
			EnableAutoblock:      cmd.EnableAutoblock,
			Modify:               cmd.Modify,
		})
	if err != nil {
		log.Error("block command failed", "error", err.Error(), "target", cmd.Target)
		writeStatus(w, status.Failure(status.CodeInternalError))
		return
	}

	writeStatus(w, outcome)
}

func (s *Server) unblockTarget(w http.ResponseWriter, r *http.Request) {
	performerID, authErr := auth.AccountIDFromRequest(r)
	if authErr != nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var cmd dto.UnblockCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	outcome, err := s.blocks.Unblock(r.Context(), cmd.Target, cmd.Reason,
		manager.Performer{AccountID: performerID, OriginWiki: s.policy.LocalWikiID})
	if err != nil {
		log.Error("unblock command failed", "error", err.Error(), "target", cmd.Target)
		writeStatus(w, status.Failure(status.CodeInternalError))
		return
	}

	writeStatus(w, outcome)
}

func (s *Server) blockRow(ctx context.Context, block *domain.BlockRecord, viewerID uint64) dto.BlockRow {
	row := dto.BlockRow{
		ID:                      block.ID,
		Target:                  s.formatter.TargetForViewer(ctx, block, viewerID),
		TargetType:              targetTypeOf(block),
		Reason:                  block.Reason,
		Performer:               s.formatter.PerformerForViewer(ctx, block, viewerID),
		AnonOnly:                block.AnonOnly,
		AccountCreationDisabled: block.AccountCreationDisabled,
		AutoblockEnabled:        block.AutoblockEnabled,
		CreatedAt:               block.CreatedAt,
		ExpiresAt:               block.ExpiresAt,
		Expiry:                  manager.FormatExpiry(block.ExpiresAt),
	}

	if block.TargetAddress != "" && !strings.Contains(block.TargetAddress, "/") {
		row.Country = s.geo.Country(block.TargetAddress)
	}

	if block.AutoblockEnabled {
		if count, err := s.store.CountActiveAutoblocks(ctx, block.ID, s.clock.Now()); err == nil {
			row.AutoblockCount = count
		}
	}

	if override, err := s.store.GetOverride(ctx, block.ID, s.policy.LocalWikiID); err == nil && override != nil {
		row.LocallyDisabled = true
	}

	return row
}

func targetTypeOf(block *domain.BlockRecord) string {
	switch {
	case block.IsAccountTarget():
		return database.TargetTypeAccount
	case strings.Contains(block.TargetAddress, "/"):
		return database.TargetTypeRange
	default:
		return database.TargetTypeIP
	}
}
