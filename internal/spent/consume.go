package spent

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/drand/vmauth/authorization"
	"github.com/drand/vmauth/common/log"
	"github.com/drand/vmauth/internal/metrics"
)

// Entries lists the records spent by an authorization, in call order.
func Entries(auth *authorization.Authorization) []Entry {
	var out []Entry
	for _, req := range auth.Requests() {
		for _, rid := range req.RecordIDs() {
			out = append(out, Entry{
				SerialNumber:  FieldBytes(rid.SerialNumber),
				Tag:           FieldBytes(rid.Tag),
				Commitment:    FieldBytes(rid.Commitment),
				Authorization: auth.ID().String(),
				Program:       req.ProgramID().String(),
				Function:      req.FunctionName().String(),
			})
		}
	}
	return out
}

// Consume marks the records of a verified authorization as spent. It fails
// without writing anything when the authorization spends a record twice or
// when the store already holds one of its serial numbers or tags.
func Consume(ctx context.Context, l log.Logger, store Store, auth *authorization.Authorization) ([]Entry, error) {
	entries := Entries(auth)
	if len(entries) == 0 {
		return nil, nil
	}
	if err := checkDistinct(entries); err != nil {
		metrics.DoubleSpends.Inc()
		return nil, err
	}
	if err := store.Spend(ctx, entries); err != nil {
		if errors.Is(err, ErrDoubleSpend) {
			metrics.DoubleSpends.Inc()
		}
		l.Warnw("rejecting spend", "authorization", auth.ID().String(), "err", err)
		return nil, err
	}
	metrics.SpentRecords.Add(float64(len(entries)))
	l.Debugw("records spent", "authorization", auth.ID().String(), "records", len(entries))
	return entries, nil
}

// checkDistinct reports every pair of entries sharing a serial number or a
// tag.
func checkDistinct(entries []Entry) error {
	var result *multierror.Error
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			switch {
			case bytes.Equal(entries[i].SerialNumber, entries[j].SerialNumber):
				result = multierror.Append(result,
					fmt.Errorf("entries %d and %d: %w", i, j, &DoubleSpendError{Entry: entries[j], Field: "serial number"}))
			case bytes.Equal(entries[i].Tag, entries[j].Tag):
				result = multierror.Append(result,
					fmt.Errorf("entries %d and %d: %w", i, j, &DoubleSpendError{Entry: entries[j], Field: "tag"}))
			}
		}
	}
	return result.ErrorOrNil()
}
