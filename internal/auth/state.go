package auth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/util"
)

// Flow is the intent encoded into the OAuth state parameter
type Flow string

const (
	FlowLogin      Flow = "login"
	FlowAddAccount Flow = "add_account"
)

const (
	// stateEntropyBytes random bytes back every nonce (43 base64url characters)
	stateEntropyBytes = 32

	addAccountMarker = "_add_account_"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// State is a decoded OAuth state parameter. For the add-account flow the
// linking session id travels inside the value, so the callback does not
// need a server-side lookup to recover it.
type State struct {
	Value            string
	Nonce            string
	Flow             Flow
	LinkingSessionID string
}

// NewState generates a fresh random state for flow.
func NewState(flow Flow, linkingSessionID string) (State, error) {
	switch flow {
	case FlowLogin:
		if linkingSessionID != "" {
			return State{}, ErrUnexpectedLink
		}
	case FlowAddAccount:
		if linkingSessionID == "" {
			return State{}, ErrMissingLinkSession
		}
		if !urlSafe.MatchString(linkingSessionID) {
			return State{}, fmt.Errorf("%w: linking session id is not URL-safe", ErrMalformedState)
		}
	default:
		return State{}, fmt.Errorf("%w: unknown flow %q", ErrMalformedState, flow)
	}

	nonce, err := util.CryptoRandomURLString(stateEntropyBytes)
	if err != nil {
		return State{}, fmt.Errorf("failed to generate state: %w", err)
	}

	value := nonce
	if flow == FlowAddAccount {
		value = nonce + addAccountMarker + linkingSessionID
	}
	return State{
		Value:            value,
		Nonce:            nonce,
		Flow:             flow,
		LinkingSessionID: linkingSessionID,
	}, nil
}

// ParseState decodes a state value received on the callback.
// Session ids never contain underscores, so the last marker wins.
func ParseState(raw string) (State, error) {
	if len(raw) < models.MinStateLength || !urlSafe.MatchString(raw) {
		return State{}, ErrMalformedState
	}

	idx := strings.LastIndex(raw, addAccountMarker)
	if idx < 0 {
		return State{Value: raw, Nonce: raw, Flow: FlowLogin}, nil
	}

	nonce := raw[:idx]
	sessionID := raw[idx+len(addAccountMarker):]
	if len(nonce) < models.MinStateLength || sessionID == "" {
		return State{}, ErrMalformedState
	}
	return State{
		Value:            raw,
		Nonce:            nonce,
		Flow:             FlowAddAccount,
		LinkingSessionID: sessionID,
	}, nil
}
