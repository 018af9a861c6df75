package services

import (
	"context"
	"fmt"
	"time"

	"cassa/internal/auth"
	"cassa/internal/core"
	"cassa/internal/filter"
	"cassa/internal/storage"
)

// Wallet is a user's ledger for a date filter. Entries are oldest first and
// carry the running balance over the whole history.
type Wallet struct {
	UserID  int64
	Entries []core.WalletEntry
	Opening core.Money // balance before the filtered period
	Closing core.Money // balance after the last filtered entry
	Balance core.Money // current balance
}

type WalletService struct {
	storage *storage.SQLiteRepository
}

func NewWalletService(storage *storage.SQLiteRepository) *WalletService {
	return &WalletService{storage: storage}
}

// Wallet returns userID's wallet. Users may only read their own; 0 means
// the actor.
func (s *WalletService) Wallet(ctx context.Context, actor auth.Identity, userID int64, d filter.Descriptor) (Wallet, error) {
	if userID == 0 {
		userID = actor.ID
	}
	if userID != actor.ID && !actor.Role.IsAdmin() {
		return Wallet{}, core.ErrForbidden
	}
	if err := d.Validate(); err != nil {
		return Wallet{}, err
	}

	entries, err := s.storage.ListWalletEntries(ctx, userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("load wallet: %w", err)
	}
	return buildWallet(userID, entries, d), nil
}

func buildWallet(userID int64, entries []core.WalletEntry, d filter.Descriptor) Wallet {
	w := Wallet{UserID: userID}
	for i := range entries {
		w.Balance = w.Balance.Add(entries[i].Amount)
		entries[i].Balance = w.Balance
	}

	from, _, bounded := d.Bounds()
	if bounded {
		start := from.Format(time.DateOnly)
		for _, e := range entries {
			if e.Date.String() < start {
				w.Opening = w.Opening.Add(e.Amount)
			}
		}
	}

	w.Entries = filter.Apply(d, entries)
	w.Closing = w.Opening
	for _, e := range w.Entries {
		w.Closing = w.Closing.Add(e.Amount)
	}
	if w.Entries == nil {
		w.Entries = []core.WalletEntry{}
	}
	return w
}
