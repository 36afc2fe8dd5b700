package store

import (
	"database/sql"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitcoin-coordinator/coordinator/internal/models"
)

type newsDTO struct {
	Kind    string `json:"kind"`
	AckKey  string `json:"ack_key"`
	Txid    string `json:"txid,omitempty"`
	Context string `json:"context,omitempty"`
	Reason  string `json:"reason,omitempty"`

	ChildTxids  []string `json:"child_txids,omitempty"`
	Contexts    []string `json:"contexts,omitempty"`
	FundingTxid string   `json:"funding_txid,omitempty"`

	RequiredSats  int64 `json:"required_sats,omitempty"`
	AvailableSats int64 `json:"available_sats,omitempty"`

	ChildTxid    string `json:"child_txid,omitempty"`
	SpeedupCount int    `json:"speedup_count,omitempty"`

	EstimatedSatVB int64 `json:"estimated_sat_vb,omitempty"`
	CapSatVB       int64 `json:"cap_sat_vb,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func newsToDTO(n models.NewsEntry) newsDTO {
	d := newsDTO{
		Kind:           string(n.Kind),
		AckKey:         n.AckKey,
		Context:        n.Context,
		Reason:         n.Reason,
		Contexts:       n.Contexts,
		RequiredSats:   n.RequiredSats,
		AvailableSats:  n.AvailableSats,
		SpeedupCount:   n.SpeedupCount,
		EstimatedSatVB: n.EstimatedSatVB,
		CapSatVB:       n.CapSatVB,
		CreatedAt:      n.CreatedAt,
	}
	if n.Txid != (chainhash.Hash{}) {
		d.Txid = n.Txid.String()
	}
	if n.FundingTxid != (chainhash.Hash{}) {
		d.FundingTxid = n.FundingTxid.String()
	}
	if n.ChildTxid != (chainhash.Hash{}) {
		d.ChildTxid = n.ChildTxid.String()
	}
	for _, c := range n.ChildTxids {
		d.ChildTxids = append(d.ChildTxids, c.String())
	}
	return d
}

func newsFromDTO(d newsDTO) models.NewsEntry {
	n := models.NewsEntry{
		Kind:           models.NewsKind(d.Kind),
		AckKey:         d.AckKey,
		Context:        d.Context,
		Reason:         d.Reason,
		Contexts:       d.Contexts,
		RequiredSats:   d.RequiredSats,
		AvailableSats:  d.AvailableSats,
		SpeedupCount:   d.SpeedupCount,
		EstimatedSatVB: d.EstimatedSatVB,
		CapSatVB:       d.CapSatVB,
		CreatedAt:      d.CreatedAt,
	}
	if d.Txid != "" {
		if h, err := chainhash.NewHashFromStr(d.Txid); err == nil {
			n.Txid = *h
		}
	}
	if d.FundingTxid != "" {
		if h, err := chainhash.NewHashFromStr(d.FundingTxid); err == nil {
			n.FundingTxid = *h
		}
	}
	if d.ChildTxid != "" {
		if h, err := chainhash.NewHashFromStr(d.ChildTxid); err == nil {
			n.ChildTxid = *h
		}
	}
	for _, c := range d.ChildTxids {
		if h, err := chainhash.NewHashFromStr(c); err == nil {
			n.ChildTxids = append(n.ChildTxids, *h)
		}
	}
	return n
}

// AddNews appends a coordinator news entry to the feed.
func (s *Store) AddNews(n models.NewsEntry) error {
	return s.withTx(func(tx *sql.Tx) error {
		var list []newsDTO
		if err := getTx(tx, keyNewsList(), &list); err != nil && err != ErrNotFound {
			return err
		}
		list = append(list, newsToDTO(n))
		return putTx(tx, keyNewsList(), list)
	})
}

// HasNews reports whether a coordinator news entry with the given ack
// key is currently queued, used to dedupe retry-cycle error news.
func (s *Store) HasNews(ackKey string) (bool, error) {
	var list []newsDTO
	if err := s.get(keyNewsList(), &list); err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	for _, d := range list {
		if d.AckKey == ackKey {
			return true, nil
		}
	}
	return false, nil
}

// GetNews returns all queued coordinator news.
func (s *Store) GetNews() ([]models.NewsEntry, error) {
	var list []newsDTO
	if err := s.get(keyNewsList(), &list); err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	out := make([]models.NewsEntry, len(list))
	for i, d := range list {
		out[i] = newsFromDTO(d)
	}
	return out, nil
}

// AckNews removes the coordinator news entry with the given ack key.
// Idempotent: acking twice is a no-op on the second call.
func (s *Store) AckNews(ackKey string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var list []newsDTO
		if err := getTx(tx, keyNewsList(), &list); err != nil {
			if err == ErrNotFound {
				return nil
			}
			return err
		}
		out := list[:0]
		for _, d := range list {
			if d.AckKey != ackKey {
				out = append(out, d)
			}
		}
		return putTx(tx, keyNewsList(), out)
	})
}

// AddMonitorNews appends a monitor-news entry mirrored from the chain observer.
func (s *Store) AddMonitorNews(n models.MonitorNews) error {
	return s.withTx(func(tx *sql.Tx) error {
		var list []models.MonitorNews
		if err := getTx(tx, keyMonitorNewsList(), &list); err != nil && err != ErrNotFound {
			return err
		}
		list = append(list, n)
		return putTx(tx, keyMonitorNewsList(), list)
	})
}

// GetMonitorNews returns all queued monitor news.
func (s *Store) GetMonitorNews() ([]models.MonitorNews, error) {
	var list []models.MonitorNews
	if err := s.get(keyMonitorNewsList(), &list); err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return list, nil
}

// AckMonitorNews removes the monitor-news entry with the given ack key.
func (s *Store) AckMonitorNews(ackKey string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var list []models.MonitorNews
		if err := getTx(tx, keyMonitorNewsList(), &list); err != nil {
			if err == ErrNotFound {
				return nil
			}
			return err
		}
		out := list[:0]
		for _, n := range list {
			if n.AckKey != ackKey {
				out = append(out, n)
			}
		}
		return putTx(tx, keyMonitorNewsList(), out)
	})
}
