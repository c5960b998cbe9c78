package rpc

import (
	"encoding/json"
	"fmt"

	"solbox/native/giftcard"
	"solbox/observability"
)

type contractConfigPayload struct {
	ReferralLimit        uint32   `json:"referralLimit"`
	CommissionPercentage uint32   `json:"commissionPercentage"`
	BonusPercentage      uint32   `json:"bonusPercentage"`
	CommissionLevels     []uint32 `json:"commissionLevels,omitempty"`
	ValidAmounts         []uint64 `json:"validAmounts,omitempty"`
}

func (p *contractConfigPayload) toConfig() *giftcard.ContractConfig {
	if p == nil {
		return nil
	}
	return &giftcard.ContractConfig{
		ReferralLimit:        p.ReferralLimit,
		CommissionPercentage: p.CommissionPercentage,
		BonusPercentage:      p.BonusPercentage,
		CommissionLevels:     append([]uint32(nil), p.CommissionLevels...),
		ValidAmounts:         append([]uint64(nil), p.ValidAmounts...),
	}
}

func configPayload(cfg giftcard.ContractConfig) contractConfigPayload {
	return contractConfigPayload{
		ReferralLimit:        cfg.ReferralLimit,
		CommissionPercentage: cfg.CommissionPercentage,
		BonusPercentage:      cfg.BonusPercentage,
		CommissionLevels:     append([]uint32(nil), cfg.CommissionLevels...),
		ValidAmounts:         append([]uint64(nil), cfg.ValidAmounts...),
	}
}

type initializeParams struct {
	Caller        string                 `json:"caller"`
	FounderWallet string                 `json:"founderWallet,omitempty"`
	Config        *contractConfigPayload `json:"config,omitempty"`
}

type updateConfigParams struct {
	Caller string                `json:"caller"`
	Config contractConfigPayload `json:"config"`
}

type updateCommissionParams struct {
	Caller               string   `json:"caller"`
	CommissionPercentage uint32   `json:"commissionPercentage"`
	CommissionLevels     []uint32 `json:"commissionLevels,omitempty"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type blacklistParams struct {
	Caller string `json:"caller"`
	User   string `json:"user"`
}

type grantParams struct {
	Caller  string `json:"caller"`
	User    string `json:"user"`
	Package uint64 `json:"package"`
}

type upgradeParams struct {
	Caller     string `json:"caller"`
	NewPackage uint64 `json:"newPackage"`
}

type buyParams struct {
	Caller   string `json:"caller"`
	Referrer string `json:"referrer"`
	Amount   uint64 `json:"amount"`
}

type userQuery struct {
	User string `json:"user"`
}

type ledgerResult struct {
	Owner                      string                `json:"owner"`
	FounderWallet              string                `json:"founderWallet"`
	Paused                     bool                  `json:"paused"`
	TotalSold                  uint64                `json:"totalSold"`
	TotalCommissionDistributed uint64                `json:"totalCommissionDistributed"`
	BonusPoolAccrued           uint64                `json:"bonusPoolAccrued"`
	ReferralCount              uint64                `json:"referralCount"`
	Config                     contractConfigPayload `json:"config"`
	Blacklist                  []string              `json:"blacklist"`
}

type userResult struct {
	Key            string `json:"key"`
	CurrentPackage uint64 `json:"currentPackage"`
	TotalEarnings  uint64 `json:"totalEarnings"`
}

type relationshipResult struct {
	User      string `json:"user"`
	Referrer  string `json:"referrer"`
	Timestamp uint64 `json:"timestamp"`
}

type purchaseResult struct {
	User       string `json:"user"`
	Referrer   string `json:"referrer"`
	Amount     uint64 `json:"amount"`
	Commission uint64 `json:"commission"`
	Bonus      uint64 `json:"bonus"`
	Residual   uint64 `json:"residual"`
	Timestamp  uint64 `json:"timestamp"`
}

type pauseResult struct {
	Paused bool `json:"paused"`
}

func decodeParams(params []json.RawMessage, out interface{}) *RPCError {
	if len(params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func parsePrincipalParam(field, value string) (giftcard.Principal, *RPCError) {
	p, err := giftcard.ParsePrincipal(value)
	if err != nil {
		return giftcard.Principal{}, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid %s: %v", field, err)}
	}
	return p, nil
}

func engineError(err error) *RPCError {
	return &RPCError{Code: errorCode(err), Message: err.Error()}
}

func (s *Server) handleInitialize(params []json.RawMessage) (interface{}, *RPCError) {
	var payload initializeParams
	if rpcErr := decodeParams(params, &payload); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parsePrincipalParam("caller", payload.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	founder := giftcard.Principal{}
	if payload.FounderWallet != "" {
		founder, rpcErr = parsePrincipalParam("founderWallet", payload.FounderWallet)
		if rpcErr != nil {
			return nil, rpcErr
		}
	}
	cfg := payload.Config.toConfig()
	if cfg == nil {
		cfg = s.contractDefault
	}
	ledger, err := s.engine.Initialize(caller, founder, cfg)
	if err != nil {
		return nil, engineError(err)
	}
	return ledgerPayload(ledger), nil
}

func (s *Server) handleUpdateConfig(params []json.RawMessage) (interface{}, *RPCError) {
	var payload updateConfigParams
	if rpcErr := decodeParams(params, &payload); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parsePrincipalParam("caller", payload.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.UpdateConfig(caller, payload.Config.toConfig()); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"updated": true}, nil
}

func (s *Server) handleUpdateCommissionConfig(params []json.RawMessage) (interface{}, *RPCError) {
	var payload updateCommissionParams
	if rpcErr := decodeParams(params, &payload); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parsePrincipalParam("caller", payload.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.UpdateCommissionConfig(caller, payload.CommissionPercentage, payload.CommissionLevels); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"updated": true}, nil
}

func (s *Server) handleTogglePause(params []json.RawMessage) (interface{}, *RPCError) {
	var payload callerParams
	if rpcErr := decodeParams(params, &payload); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parsePrincipalParam("caller", payload.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	paused, err := s.engine.TogglePause(caller)
	if err != nil {
		return nil, engineError(err)
	}
	return pauseResult{Paused: paused}, nil
}

func (s *Server) handleAddToBlacklist(params []json.RawMessage) (interface{}, *RPCError) {
	return s.handleBlacklist(params, s.engine.AddToBlacklist)
}

func (s *Server) handleRemoveFromBlacklist(params []json.RawMessage) (interface{}, *RPCError) {
	return s.handleBlacklist(params, s.engine.RemoveFromBlacklist)
}

func (s *Server) handleBlacklist(params []json.RawMessage, op func(caller, user giftcard.Principal) error) (interface{}, *RPCError) {
	var payload blacklistParams
	if rpcErr := decodeParams(params, &payload); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parsePrincipalParam("caller", payload.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parsePrincipalParam("user", payload.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := op(caller, user); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"updated": true}, nil
}

func (s *Server) handleGrantPackage(params []json.RawMessage) (interface{}, *RPCError) {
	var payload grantParams
	if rpcErr := decodeParams(params, &payload); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parsePrincipalParam("caller", payload.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parsePrincipalParam("user", payload.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.GrantPackage(caller, user, payload.Package); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"granted": true}, nil
}

func (s *Server) handleUpgradePackage(params []json.RawMessage) (interface{}, *RPCError) {
	var payload upgradeParams
	if rpcErr := decodeParams(params, &payload); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parsePrincipalParam("caller", payload.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.UpgradePackage(caller, payload.NewPackage); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"upgraded": true}, nil
}

func (s *Server) handleBuy(params []json.RawMessage) (interface{}, *RPCError) {
	var payload buyParams
	if rpcErr := decodeParams(params, &payload); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parsePrincipalParam("caller", payload.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	referrer, rpcErr := parsePrincipalParam("referrer", payload.Referrer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.engine.BuyGiftCard(caller, referrer, payload.Amount)
	if err != nil {
		return nil, engineError(err)
	}
	observability.GiftCard().RecordPurchase(receipt.Split.Commission, receipt.Referrer != referrer)
	return purchaseResult{
		User:       receipt.User.Hex(),
		Referrer:   receipt.Referrer.Hex(),
		Amount:     receipt.Amount,
		Commission: receipt.Split.Commission,
		Bonus:      receipt.Split.Bonus,
		Residual:   receipt.Split.Residual,
		Timestamp:  receipt.Timestamp,
	}, nil
}

func ledgerPayload(ledger *giftcard.LedgerState) ledgerResult {
	blacklist := make([]string, 0, len(ledger.Blacklist))
	for _, entry := range ledger.Blacklist {
		blacklist = append(blacklist, entry.Hex())
	}
	return ledgerResult{
		Owner:                      ledger.Owner.Hex(),
		FounderWallet:              ledger.FounderWallet.Hex(),
		Paused:                     ledger.Paused,
		TotalSold:                  ledger.TotalSold,
		TotalCommissionDistributed: ledger.TotalCommissionDistributed,
		BonusPoolAccrued:           ledger.BonusPoolAccrued,
		ReferralCount:              ledger.ReferralCount,
		Config:                     configPayload(ledger.Config),
		Blacklist:                  blacklist,
	}
}

func (s *Server) handleGetLedger(params []json.RawMessage) (interface{}, *RPCError) {
	ledger, err := s.engine.Ledger()
	if err != nil {
		return nil, engineError(err)
	}
	return ledgerPayload(ledger), nil
}

func (s *Server) handleGetUser(params []json.RawMessage) (interface{}, *RPCError) {
	var payload userQuery
	if rpcErr := decodeParams(params, &payload); rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parsePrincipalParam("user", payload.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	record, ok, err := s.engine.User(user)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "user not found"}
	}
	return userResult{
		Key:            record.Key.Hex(),
		CurrentPackage: record.CurrentPackage,
		TotalEarnings:  record.TotalEarnings,
	}, nil
}

func (s *Server) handleGetRelationships(params []json.RawMessage) (interface{}, *RPCError) {
	relationships, err := s.engine.Relationships()
	if err != nil {
		return nil, engineError(err)
	}
	out := make([]relationshipResult, 0, len(relationships))
	for _, rel := range relationships {
		out = append(out, relationshipResult{
			User:      rel.User.Hex(),
			Referrer:  rel.Referrer.Hex(),
			Timestamp: rel.Timestamp,
		})
	}
	return out, nil
}

func (s *Server) handleGetEvents(params []json.RawMessage) (interface{}, *RPCError) {
	if s.events == nil {
		return nil, &RPCError{Code: codeServerError, Message: "event source not configured"}
	}
	return s.events.Events(), nil
}
