package core

// DriftTolerance is the largest difference between a stored and a computed
// balance that is not treated as drift (0.01 currency unit).
var DriftTolerance = Money{Cents: 1}

// Reconciliation is the outcome of Reconcile.
type Reconciliation struct {
	Balance    Money
	WasDrifted bool
	Drift      *DriftCorrected
}

// AuthoritativeBalance computes the available balance of source from the
// operations applied against it: initial amount, minus its expenses, minus
// outgoing transfers, plus incoming transfers. Rows belonging to other
// sources are ignored.
func AuthoritativeBalance(source IncomeSource, expenses []Expense, transfers []Transfer) Money {
	balance := source.InitialAmount
	for _, e := range expenses {
		if e.SourceID == source.ID {
			balance = balance.Sub(e.Amount)
		}
	}
	for _, t := range transfers {
		switch source.ID {
		case t.SourceID:
			balance = balance.Sub(t.Amount)
		case t.DestinationID:
			balance = balance.Add(t.Amount)
		}
	}
	return balance
}

// Reconcile compares the stored available balance of source with the
// authoritative one. It never fails: a stale stored value is reported as
// drift and the authoritative value is returned for the caller to persist.
func Reconcile(source IncomeSource, expenses []Expense, transfers []Transfer) Reconciliation {
	authoritative := AuthoritativeBalance(source, expenses, transfers)
	diff := source.AvailableBalance.Sub(authoritative)
	if diff.Cents < 0 {
		diff = diff.Neg()
	}
	if diff.Cents <= DriftTolerance.Cents {
		// within tolerance the stored value stands
		return Reconciliation{Balance: source.AvailableBalance}
	}
	return Reconciliation{
		Balance:    authoritative,
		WasDrifted: true,
		Drift: &DriftCorrected{
			SourceID:      source.ID,
			OwnerID:       source.OwnerID,
			Stored:        source.AvailableBalance,
			Authoritative: authoritative,
		},
	}
}
