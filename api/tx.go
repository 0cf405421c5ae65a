package api

// Path suffixes of the repository transaction REST sub-protocol. These are
// protocol constants; they must never be hand-derived at call sites.
const (
	// TransactionPath is POSTed against the base URL to create a transaction.
	// A successful response is 201 with a Location header of
	// <base>/<sessionID>.
	TransactionPath = "/fcr:tx"
	// CommitPath is appended to <base>/<sessionID> to commit. Success is 204.
	CommitPath = TransactionPath + "/fcr:commit"
	// RollbackPath is appended to <base>/<sessionID> to roll back. Success is 204.
	RollbackPath = TransactionPath + "/fcr:rollback"
	// FixityPath is appended to a resource URL for fixity-check GETs.
	FixityPath = "/fcr:fixity"
)
