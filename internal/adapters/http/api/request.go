package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/okian/pulse/internal/domain/game"
)

// Request headers.
const (
	HeaderCaller         = "X-Caller-Address"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// caller returns the authenticated sender of r.
func caller(r *http.Request) (common.Address, error) {
	addr, err := parseAddress(r.Header.Get(HeaderCaller))
	if err != nil || addr == (common.Address{}) {
		return common.Address{}, ErrInvalidCaller
	}
	return addr, nil
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// roundID parses the {id} path parameter. Anything that is not a round id
// is reported as an unknown round.
func roundID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", game.ErrInvalidRoundID, raw)
	}
	return id, nil
}
