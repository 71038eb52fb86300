package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Deal errors
var (
	// ErrDealNotFound is returned when no staking deal matches the given criteria.
	ErrDealNotFound = errors.New("staking deal not found")

	// ErrDealNotActive is returned when results, expenses, or settlements are
	// posted against a deal that is not in DealStatusActive.
	ErrDealNotActive = errors.New("staking deal is not active")

	// ErrDealAlreadyCompleted is returned when trying to mutate a completed deal.
	ErrDealAlreadyCompleted = errors.New("staking deal is already completed")

	// ErrInvalidPercentage is returned when the investor percentage is outside 0–100.
	ErrInvalidPercentage = errors.New("investor percentage must be between 0 and 100")

	// ErrInvalidMarkup is returned when the markup multiplier is not positive.
	ErrInvalidMarkup = errors.New("markup must be greater than zero")

	// ErrInvalidExpenseRule is returned when the expense-handling rule is not one
	// of the three enumerated modes.
	ErrInvalidExpenseRule = errors.New("invalid expense rule: must be proportional, player_covers, or investor_covers")
)

// Settlement errors
var (
	// ErrSettlementNotFound is returned when no settlement matches the given criteria.
	ErrSettlementNotFound = errors.New("settlement not found")

	// ErrSettlementAlreadyPosted is returned when a settlement for the same deal
	// and period has already been posted.
	ErrSettlementAlreadyPosted = errors.New("settlement for this period is already posted")

	// ErrInvalidPeriod is returned when a settlement period's end precedes its start.
	ErrInvalidPeriod = errors.New("settlement period end must not precede start")

	// ErrEntryOutsidePeriod is returned when a tournament or expense entry is
	// dated outside the settlement period bounds.
	ErrEntryOutsidePeriod = errors.New("entry is dated outside the settlement period")

	// ErrAllocationMismatch indicates an internal arithmetic-consistency failure:
	// allocations did not sum to the net result. This must never occur for valid
	// inputs and always indicates a defect.
	ErrAllocationMismatch = errors.New("internal: allocations do not sum to net result")
)

// Result / expense errors
var (
	// ErrResultNotFound is returned when no tournament entry matches the criteria.
	ErrResultNotFound = errors.New("tournament result not found")

	// ErrExpenseNotFound is returned when no expense entry matches the criteria.
	ErrExpenseNotFound = errors.New("expense entry not found")

	// ErrNegativeAmount is returned when a buy-in, prize, or expense amount is negative.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrAlertNotFound is returned when no risk alert matches the criteria.
	ErrAlertNotFound = errors.New("risk alert not found")
)

// User / bankroll errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned on registration when the email already exists.
	ErrEmailTaken = errors.New("email address is already registered")

	// ErrUsernameTaken is returned on registration when the username already exists.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserInactive is returned when a suspended user attempts an action.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrBankrollNotFound is returned when no bankroll exists for the requested user.
	ErrBankrollNotFound = errors.New("bankroll not found")

	// ErrInsufficientBankroll is returned when a bankroll's available balance is
	// too low to fund a deal or cover a debit.
	ErrInsufficientBankroll = errors.New("insufficient bankroll balance")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenExpired is returned when a JWT or refresh token has passed its TTL.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or its signature
	// does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrDealNotFound,
	ErrSettlementNotFound,
	ErrResultNotFound,
	ErrExpenseNotFound,
	ErrUserNotFound,
	ErrBankrollNotFound,
	ErrAlertNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors. Use this instead of comparing error values directly
// when you need to translate domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation returns true for errors caused by malformed input terms; these
// map to HTTP 400 responses.
func IsValidation(err error) bool {
	validationErrors := []error{
		ErrInvalidPercentage,
		ErrInvalidMarkup,
		ErrInvalidExpenseRule,
		ErrInvalidPeriod,
		ErrEntryOutsidePeriod,
		ErrNegativeAmount,
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict (e.g.
// double-posting a settlement or mutating a completed deal).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrEmailTaken,
		ErrUsernameTaken,
		ErrDealAlreadyCompleted,
		ErrSettlementAlreadyPosted,
		ErrDealNotActive,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
