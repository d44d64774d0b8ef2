package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal       ErrorCode = "COMMON_001"
	ErrCodeInvalidParam   ErrorCode = "COMMON_002"
	ErrCodeNotFound       ErrorCode = "COMMON_003"
	ErrCodeConflict       ErrorCode = "COMMON_004"
	ErrCodeTimeout        ErrorCode = "COMMON_005"
	ErrCodeValidation     ErrorCode = "COMMON_006"
	ErrCodeSerialization  ErrorCode = "COMMON_007"
	ErrCodeNotImplemented ErrorCode = "COMMON_008"
	ErrCodeUnknown        ErrorCode = "COMMON_999"
	ErrCodeOK             ErrorCode = "OK"
)

// Configuration error codes.  These fail fast, before any expensive work,
// and always name the invalid value plus the valid set.
const (
	ErrCodeConfigInvalid          ErrorCode = "CFG_001"
	ErrCodeSolubilityBucket       ErrorCode = "CFG_002"
	ErrCodeFingerprintFormat      ErrorCode = "CFG_003"
	ErrCodeFractionCoverage       ErrorCode = "CFG_004"
	ErrCodeFingerprintDimMismatch ErrorCode = "CFG_005"
)

// Data error codes.  Skip-and-continue at per-compound / per-candidate
// granularity; never abort a batch for one bad record.
const (
	ErrCodeFingerprintFailed ErrorCode = "DAT_001"
	ErrCodeStructureParse    ErrorCode = "DAT_002"
	ErrCodeSpeciesUnresolved ErrorCode = "DAT_003"
	ErrCodeCompoundNotFound  ErrorCode = "DAT_004"
)

// Solver error codes.
const (
	// ErrCodeSolverInfeasible marks the expected, recoverable outcome of an
	// over-constrained candidate.  Scored as zero fitness, never propagated
	// past the evaluator.
	ErrCodeSolverInfeasible ErrorCode = "SLV_001"
	ErrCodeSolverFailed     ErrorCode = "SLV_002"
)

// Connectivity / build error codes.  Fatal to the enclosing build call.
const (
	ErrCodeSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeChunkFailed       ErrorCode = "SRC_002"
	ErrCodeSnapshotStore     ErrorCode = "SRC_003"
	ErrCodeCacheError        ErrorCode = "SRC_004"
)

// Invariant violation codes.  These indicate a programming error at the
// call site, not a data condition.
const (
	ErrCodeInvariant ErrorCode = "INV_001"
)
