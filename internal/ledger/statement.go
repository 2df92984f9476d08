package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// WriteStatementCSV streams an account statement: every entry in replay order
// with the running balance after each, starting from the opening balance.
func (s *Service) WriteStatementCSV(ctx context.Context, accountID int64, w io.Writer) error {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	entries, err := s.repo.ListEntriesForReplay(ctx, accountID)
	if err != nil {
		return fmt.Errorf("replay entries: %w", err)
	}

	writer := csv.NewWriter(w)
	writer.UseCRLF = true

	if err := writer.Write([]string{"date", "kind", "amount", "description", "reference", "balance"}); err != nil {
		return err
	}
	if err := writer.Write([]string{
		"", "OPENING", account.OpeningBalance.StringFixed(2),
		account.Name, "", account.OpeningBalance.StringFixed(2),
	}); err != nil {
		return err
	}

	balance := account.OpeningBalance
	for _, entry := range entries {
		switch entry.Kind {
		case EntryDebit:
			balance = balance.Add(entry.Amount)
		case EntryCredit:
			balance = balance.Sub(entry.Amount)
		}
		reference := ""
		if entry.ReferenceKind != "" {
			reference = fmt.Sprintf("%s:%s", entry.ReferenceKind, entry.ReferenceID)
		}
		if err := writer.Write([]string{
			entry.EntryDate.Format("2006-01-02"),
			string(entry.Kind),
			entry.Amount.StringFixed(2),
			entry.Description,
			reference,
			balance.StringFixed(2),
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
