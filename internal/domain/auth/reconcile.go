package auth

// Decision is the outcome of one reconciliation pass.
type Decision struct {
	IsLoggedIn bool
	Account    *Account
	// Adopt is set when Account was picked from the account list and the
	// provider must be told to treat it as active.
	Adopt bool
	// Corrected is set when the post-check discarded a stale selection.
	Corrected bool
}

// Reconcile maps the provider's active account and account list to a verdict.
// The active account wins; otherwise the first account in provider order is
// selected and flagged for adoption.
func Reconcile(active *Account, accounts []Account) Decision {
	if active != nil {
		acct := *active
		return Decision{IsLoggedIn: true, Account: &acct}
	}
	if len(accounts) > 0 {
		acct := accounts[0]
		return Decision{IsLoggedIn: true, Account: &acct, Adopt: true}
	}
	return Decision{}
}

// VerifyConsistent applies the post-check against a second read of the
// account list. An empty list is authoritative: a logged-in verdict becomes
// logged out.
func VerifyConsistent(d Decision, accounts []Account) Decision {
	if d.IsLoggedIn && len(accounts) == 0 {
		return Decision{Corrected: true}
	}
	return d
}
