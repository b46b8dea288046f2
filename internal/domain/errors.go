package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidQuote        = errors.New("invalid quote")
	ErrInvalidProbability  = errors.New("win probability outside (0,1)")
	ErrInvalidPayoff       = errors.New("win and loss magnitudes must be positive")
	ErrNoEdge              = errors.New("no positive edge")
	ErrInsufficientHistory = errors.New("insufficient trade history")
	ErrTradingHalted       = errors.New("trading halted")
	ErrEmergencyStop       = errors.New("emergency stop engaged")
	ErrExposureCap         = errors.New("daily exposure cap reached")
	ErrWinRateFloor        = errors.New("win rate below floor")
	ErrCooldownActive      = errors.New("loss cooldown active")
	ErrUnfillable          = errors.New("book cannot absorb size")
	ErrPlanAbandoned       = errors.New("execution plan abandoned")
	ErrUnknownPlatform     = errors.New("unknown platform")
	ErrWSDisconnect        = errors.New("websocket disconnected")
	ErrContextDone         = errors.New("context cancelled")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrLockHeld            = errors.New("lock already held")
)
