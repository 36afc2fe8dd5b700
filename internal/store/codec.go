package store

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

// The kv_store table holds self-describing JSON records (spec §6). These
// DTOs mirror internal/models but use hex-string hashes so they round-trip
// through encoding/json without custom (Un)MarshalJSON plumbing on
// chainhash.Hash.

type outpointDTO struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

func outpointToDTO(o *models.Outpoint) *outpointDTO {
	if o == nil {
		return nil
	}
	return &outpointDTO{Txid: o.Txid.String(), Vout: o.Vout}
}

func outpointFromDTO(d *outpointDTO) (*models.Outpoint, error) {
	if d == nil {
		return nil, nil
	}
	h, err := chainhash.NewHashFromStr(d.Txid)
	if err != nil {
		return nil, err
	}
	return &models.Outpoint{Txid: *h, Vout: d.Vout}, nil
}

type fundingDTO struct {
	Txid     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Amount   int64  `json:"amount"`
	KeyIndex uint32 `json:"key_index"`
}

func fundingToDTO(f models.FundingUTXO) fundingDTO {
	return fundingDTO{Txid: f.Txid.String(), Vout: f.Vout, Amount: f.Amount, KeyIndex: f.KeyIndex}
}

func fundingFromDTO(d fundingDTO) (models.FundingUTXO, error) {
	h, err := chainhash.NewHashFromStr(d.Txid)
	if err != nil {
		return models.FundingUTXO{}, err
	}
	return models.FundingUTXO{Txid: *h, Vout: d.Vout, Amount: d.Amount, KeyIndex: d.KeyIndex}, nil
}

type retryInfoDTO struct {
	Count       int       `json:"count"`
	LastAttempt time.Time `json:"last_attempt"`
	NotBefore   time.Time `json:"not_before"`
}

func retryToDTO(r *models.RetryInfo) *retryInfoDTO {
	if r == nil {
		return nil
	}
	return &retryInfoDTO{Count: r.Count, LastAttempt: r.LastAttempt, NotBefore: r.NotBefore}
}

func retryFromDTO(d *retryInfoDTO) *models.RetryInfo {
	if d == nil {
		return nil
	}
	return &models.RetryInfo{Count: d.Count, LastAttempt: d.LastAttempt, NotBefore: d.NotBefore}
}

type retryPolicyDTO struct {
	MaxAttempts     int `json:"max_attempts"`
	IntervalSeconds int `json:"interval_seconds"`
}

func retryPolicyToDTO(p *models.RetryPolicy) *retryPolicyDTO {
	if p == nil {
		return nil
	}
	return &retryPolicyDTO{MaxAttempts: p.MaxAttempts, IntervalSeconds: p.IntervalSeconds}
}

func retryPolicyFromDTO(d *retryPolicyDTO) *models.RetryPolicy {
	if d == nil {
		return nil
	}
	return &models.RetryPolicy{MaxAttempts: d.MaxAttempts, IntervalSeconds: d.IntervalSeconds}
}

type coordinatedTxDTO struct {
	Txid            string          `json:"txid"`
	RawTx           []byte          `json:"raw_tx"`
	AnchorUTXO      *outpointDTO    `json:"anchor_utxo,omitempty"`
	TargetHeight    *int64          `json:"target_height,omitempty"`
	RetryPolicy     *retryPolicyDTO `json:"retry_policy,omitempty"`
	BroadcastHeight int64           `json:"broadcast_height"`
	State           string          `json:"state"`
	Context         string          `json:"context"`
	Retry           *retryInfoDTO   `json:"retry,omitempty"`
}

func txToDTO(t *models.CoordinatedTransaction) coordinatedTxDTO {
	return coordinatedTxDTO{
		Txid:            t.Txid.String(),
		RawTx:           t.RawTx,
		AnchorUTXO:      outpointToDTO(t.AnchorUTXO),
		TargetHeight:    t.TargetHeight,
		RetryPolicy:     retryPolicyToDTO(t.RetryPolicy),
		BroadcastHeight: t.BroadcastHeight,
		State:           string(t.State),
		Context:         t.Context,
		Retry:           retryToDTO(t.Retry),
	}
}

func txFromDTO(d coordinatedTxDTO) (*models.CoordinatedTransaction, error) {
	h, err := chainhash.NewHashFromStr(d.Txid)
	if err != nil {
		return nil, err
	}
	anchor, err := outpointFromDTO(d.AnchorUTXO)
	if err != nil {
		return nil, err
	}
	return &models.CoordinatedTransaction{
		Txid:            *h,
		RawTx:           d.RawTx,
		AnchorUTXO:      anchor,
		TargetHeight:    d.TargetHeight,
		RetryPolicy:     retryPolicyFromDTO(d.RetryPolicy),
		BroadcastHeight: d.BroadcastHeight,
		State:           models.TransactionState(d.State),
		Context:         d.Context,
		Retry:           retryFromDTO(d.Retry),
	}, nil
}

type childSpeedupDTO struct {
	Anchor  outpointDTO `json:"anchor"`
	ChildTx string      `json:"child_tx"`
	Context string      `json:"context"`
}

type speedupDTO struct {
	Txid            string            `json:"txid"`
	RawTx           []byte            `json:"raw_tx"`
	Children        []childSpeedupDTO `json:"children"`
	PreviousFunding fundingDTO        `json:"previous_funding"`
	NextFunding     fundingDTO        `json:"next_funding"`
	IsRBF           bool              `json:"is_rbf"`
	BroadcastHeight int64             `json:"broadcast_height"`
	FeeRateSatVB    int64             `json:"fee_rate_sat_vb"`
	State           string            `json:"state"`
	Retry           *retryInfoDTO     `json:"retry,omitempty"`
	Sequence        int64             `json:"sequence"`
}

func speedupToDTO(s *models.SpeedupTransaction) speedupDTO {
	children := make([]childSpeedupDTO, len(s.Children))
	for i, c := range s.Children {
		children[i] = childSpeedupDTO{
			Anchor:  *outpointToDTO(&c.Anchor),
			ChildTx: c.ChildTx.String(),
			Context: c.Context,
		}
	}
	return speedupDTO{
		Txid:            s.Txid.String(),
		RawTx:           s.RawTx,
		Children:        children,
		PreviousFunding: fundingToDTO(s.PreviousFunding),
		NextFunding:     fundingToDTO(s.NextFunding),
		IsRBF:           s.IsRBF,
		BroadcastHeight: s.BroadcastHeight,
		FeeRateSatVB:    s.FeeRateSatVB,
		State:           string(s.State),
		Retry:           retryToDTO(s.Retry),
		Sequence:        s.Sequence,
	}
}

func speedupFromDTO(d speedupDTO) (*models.SpeedupTransaction, error) {
	h, err := chainhash.NewHashFromStr(d.Txid)
	if err != nil {
		return nil, err
	}
	prevFunding, err := fundingFromDTO(d.PreviousFunding)
	if err != nil {
		return nil, err
	}
	nextFunding, err := fundingFromDTO(d.NextFunding)
	if err != nil {
		return nil, err
	}
	children := make([]models.ChildSpeedup, len(d.Children))
	for i, c := range d.Children {
		anchor, err := outpointFromDTO(&c.Anchor)
		if err != nil {
			return nil, err
		}
		childTxid, err := chainhash.NewHashFromStr(c.ChildTx)
		if err != nil {
			return nil, err
		}
		children[i] = models.ChildSpeedup{Anchor: *anchor, ChildTx: *childTxid, Context: c.Context}
	}
	return &models.SpeedupTransaction{
		Txid:            *h,
		RawTx:           d.RawTx,
		Children:        children,
		PreviousFunding: prevFunding,
		NextFunding:     nextFunding,
		IsRBF:           d.IsRBF,
		BroadcastHeight: d.BroadcastHeight,
		FeeRateSatVB:    d.FeeRateSatVB,
		State:           models.SpeedupState(d.State),
		Retry:           retryFromDTO(d.Retry),
		Sequence:        d.Sequence,
	}, nil
}
